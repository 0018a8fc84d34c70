package expr

// Reference is a projected or ordered item.
type Reference interface {
	referenceNode() // Marker method - seals interface to this package
	AliasOrName() string
}

// ColumnRef projects a column, optionally under an alias.
type ColumnRef struct {
	Name  string
	Alias string
}

func (ColumnRef) referenceNode() {}

// AliasOrName returns the alias when set, the column name otherwise.
func (r ColumnRef) AliasOrName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.Name
}

// CountRef is the special "count rows" projection.
type CountRef struct {
	Alias string
}

func (CountRef) referenceNode() {}

// AliasOrName returns the alias, or "count".
func (r CountRef) AliasOrName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return "count"
}

// Ref creates a column reference.
func Ref(name string) ColumnRef {
	return ColumnRef{Name: name}
}

// As returns a copy of the reference under an alias.
func (r ColumnRef) As(alias string) ColumnRef {
	r.Alias = alias
	return r
}

// Count creates the count projection.
func Count() CountRef {
	return CountRef{}
}

// As returns a copy of the count projection under an alias.
func (r CountRef) As(alias string) CountRef {
	r.Alias = alias
	return r
}

// Direction is an ordering direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Clause is one refinement of a Query.
//
// Clause types the adapter translates:
//   - Where, Select, OrderBy, Skip, Take, WithTotalCount, Expand
//
// Clause types it hands back to the caller:
//   - Distinct, GroupBy, Having (and any Where it cannot render)
type Clause interface {
	clauseNode() // Marker method - seals interface to this package
}

// Where restricts rows. Several Where clauses are intersected.
type Where struct {
	Criteria Expression
}

func (Where) clauseNode() {}

// Select projects columns. A sole CountRef asks for the row count only.
type Select struct {
	Columns []Reference
}

func (Select) clauseNode() {}

// OrderBy orders by one column. Clause order is significance order.
type OrderBy struct {
	Column    ColumnRef
	Direction Direction
}

func (OrderBy) clauseNode() {}

// Skip skips a number of rows.
type Skip struct {
	Count int
}

func (Skip) clauseNode() {}

// Take limits the number of rows.
type Take struct {
	Count int
}

func (Take) clauseNode() {}

// WithTotalCount asks for the total number of matching rows, ignoring paging.
// Set is called exactly once before rows are returned.
type WithTotalCount struct {
	Set func(total int64)
}

func (WithTotalCount) clauseNode() {}

// Expand asks for related entities reached through a navigation link to be
// returned inline.
type Expand struct {
	Link string
}

func (Expand) clauseNode() {}

// Distinct removes duplicate rows.
type Distinct struct{}

func (Distinct) clauseNode() {}

// GroupBy groups rows by columns.
type GroupBy struct {
	Columns []ColumnRef
}

func (GroupBy) clauseNode() {}

// Having restricts groups.
type Having struct {
	Criteria Expression
}

func (Having) clauseNode() {}

// Query is a table name plus ordered clauses.
//
// Table may use dotted link notation ("Categories.Products") to navigate from
// one entity set to a related one.
type Query struct {
	Table   string
	Clauses []Clause
}

// From starts a query on a table.
func From(table string) *Query {
	return &Query{Table: table}
}

// Add appends a clause.
func (q *Query) Add(c Clause) *Query {
	q.Clauses = append(q.Clauses, c)
	return q
}

// Where appends a Where clause.
func (q *Query) Where(criteria Expression) *Query {
	return q.Add(Where{Criteria: criteria})
}

// Select appends a Select clause.
func (q *Query) Select(refs ...Reference) *Query {
	return q.Add(Select{Columns: refs})
}

// OrderBy appends an OrderBy clause.
func (q *Query) OrderBy(column string, dir Direction) *Query {
	return q.Add(OrderBy{Column: Ref(column), Direction: dir})
}

// Skip appends a Skip clause.
func (q *Query) Skip(n int) *Query {
	return q.Add(Skip{Count: n})
}

// Take appends a Take clause.
func (q *Query) Take(n int) *Query {
	return q.Add(Take{Count: n})
}

// WithTotalCount appends a WithTotalCount clause.
func (q *Query) WithTotalCount(set func(total int64)) *Query {
	return q.Add(WithTotalCount{Set: set})
}

// Expand appends an Expand clause.
func (q *Query) Expand(link string) *Query {
	return q.Add(Expand{Link: link})
}
