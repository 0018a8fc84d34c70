// Package command builds protocol-ready query commands.
//
// A Builder turns a table name plus criteria, key values, or a whole
// expr.Query into a QueryCommand. The application order is fixed because
// later steps depend on earlier resolution:
//
//  1. resolve the table path (base/derived)
//  2. attach a structured key, or decide key-vs-filter for criteria
//  3. attach navigation hops from dotted table names, left to right
//  4. attach the projection (a sole count reference makes a scalar command)
//  5. attach skip, take and ordering verbatim
//  6. return clauses with no translation as unprocessed
package command

import (
	"strconv"
	"strings"

	"github.com/roach88/odapt/internal/client"
	"github.com/roach88/odapt/internal/expr"
	"github.com/roach88/odapt/internal/filter"
	"github.com/roach88/odapt/internal/ir"
	"github.com/roach88/odapt/internal/schema"
)

// QueryCommand is a resolved, protocol-ready read command.
//
// INVARIANT: Key and Filter are never both set.
type QueryCommand struct {
	// Table is the table of the first path segment, after any resource type
	// override. Target is the table reached after navigation.
	Table  *schema.Table
	Target *schema.Table

	// TablePath is the resource path of Table ("Transport/Ships").
	TablePath string

	// Navigation lists link names followed from Table, in order.
	Navigation []string

	Key        client.Key
	Filter     expr.Expression
	FilterText string

	Expand  []string
	Columns []string
	Order   []client.OrderColumn
	Skip    *int
	Take    *int

	// SetTotalCount receives the total match count when requested.
	SetTotalCount func(total int64)

	// IsScalarResult marks a count-only command. CountAlias names the
	// field the count is returned under.
	IsScalarResult bool
	CountAlias     string

	// TargetType narrows the navigation target to a derived type, or is
	// empty.
	TargetType string

	// UnprocessedClauses are query clauses the command does not carry.
	UnprocessedClauses []expr.Clause
}

// HasKey reports whether the command selects by structured key.
func (c *QueryCommand) HasKey() bool {
	return !c.Key.IsZero()
}

// EntitySet returns the entity set the remote command starts from.
func (c *QueryCommand) EntitySet() string {
	return c.Table.Root().ActualName
}

// DerivedType returns the derived type qualifier, or "".
func (c *QueryCommand) DerivedType() string {
	if c.Table.IsDerived() {
		return c.Table.ActualName
	}
	return ""
}

// Apply configures a remote command.
func (c *QueryCommand) Apply(cmd client.Command) client.Command {
	if d := c.DerivedType(); d != "" {
		cmd = cmd.As(d)
	}
	if c.HasKey() {
		cmd = cmd.Key(c.Key)
	}
	if c.FilterText != "" {
		cmd = cmd.Filter(c.FilterText)
	}
	if len(c.Expand) > 0 {
		cmd = cmd.Expand(c.Expand...)
	}
	if c.Skip != nil {
		cmd = cmd.Skip(*c.Skip)
	}
	if c.Take != nil {
		cmd = cmd.Top(*c.Take)
	}
	if len(c.Order) > 0 {
		cmd = cmd.OrderBy(c.Order...)
	}
	if c.IsScalarResult {
		cmd = cmd.Count()
	} else if len(c.Columns) > 0 {
		cmd = cmd.Select(c.Columns...)
	}
	for _, link := range c.Navigation {
		cmd = cmd.NavigateTo(link)
	}
	if c.TargetType != "" {
		cmd = cmd.As(c.TargetType)
	}
	return cmd
}

// String renders the command in protocol URL form, unescaped:
//
//	Order_Details(OrderID=10248,ProductID=11)
//	Categories(1)/Products?$filter=UnitPrice gt 20.0&$orderby=ProductName desc&$skip=1&$top=2
//	Transport/Ships/$count
//	Depots(1)/Vehicles/Trucks
func (c *QueryCommand) String() string {
	var sb strings.Builder
	sb.WriteString(c.TablePath)
	if c.HasKey() {
		sb.WriteByte('(')
		sb.WriteString(keyText(c.Key))
		sb.WriteByte(')')
	}
	for _, link := range c.Navigation {
		sb.WriteByte('/')
		sb.WriteString(link)
	}
	if c.TargetType != "" {
		sb.WriteByte('/')
		sb.WriteString(c.TargetType)
	}
	if c.IsScalarResult {
		sb.WriteString("/$count")
	}

	var params []string
	if c.FilterText != "" {
		params = append(params, "$filter="+c.FilterText)
	}
	if len(c.Expand) > 0 {
		params = append(params, "$expand="+strings.Join(c.Expand, ","))
	}
	if len(c.Order) > 0 {
		terms := make([]string, len(c.Order))
		for i, o := range c.Order {
			terms[i] = strings.ReplaceAll(o.Name, ".", "/")
			if o.Descending {
				terms[i] += " desc"
			}
		}
		params = append(params, "$orderby="+strings.Join(terms, ","))
	}
	if len(c.Columns) > 0 && !c.IsScalarResult {
		params = append(params, "$select="+strings.Join(c.Columns, ","))
	}
	if c.Skip != nil {
		params = append(params, "$skip="+strconv.Itoa(*c.Skip))
	}
	if c.Take != nil {
		params = append(params, "$top="+strconv.Itoa(*c.Take))
	}
	if c.SetTotalCount != nil {
		params = append(params, "$inlinecount=allpages")
	}
	if len(params) > 0 {
		sb.WriteByte('?')
		sb.WriteString(strings.Join(params, "&"))
	}
	return sb.String()
}

// keyText renders a key: the bare value for single keys, name=value pairs
// for compound named keys.
func keyText(k client.Key) string {
	lit := func(v ir.Value) string {
		s, err := filter.Literal(v)
		if err != nil {
			return "?"
		}
		return s
	}

	if k.Len() == 1 {
		return lit(k.Values()[0])
	}
	if k.Named == nil {
		parts := make([]string, len(k.Positional))
		for i, v := range k.Positional {
			parts[i] = lit(v)
		}
		return strings.Join(parts, ",")
	}
	parts := make([]string, 0, k.Named.Len())
	k.Named.Range(func(name string, v ir.Value) bool {
		parts = append(parts, name+"="+lit(v))
		return true
	})
	return strings.Join(parts, ",")
}
