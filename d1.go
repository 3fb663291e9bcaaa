package worker

import (
	"context"
)

// Database is a typed handle over a relational database binding.
type Database struct {
	name    string
	backend *Guard[D1Backend]
	sched   Scheduler
}

// Name returns the binding name the handle was resolved from.
func (d *Database) Name() string { return d.name }

// PreparedStatement is a statement with its declared positional parameter
// count. Binding is validated client-side before anything reaches the host.
type PreparedStatement struct {
	db     *Database
	query  string
	params int
}

// BoundQuery is a statement with its arguments attached, ready to execute.
type BoundQuery struct {
	db    *Database
	query string
	args  []any
}

// Prepare parses the statement's placeholders and returns a prepared
// statement. The SQL itself is validated by the host at execution time.
func (d *Database) Prepare(query string) *PreparedStatement {
	return &PreparedStatement{db: d, query: query, params: countPlaceholders(query)}
}

// Params returns the number of positional parameters the statement declares.
func (s *PreparedStatement) Params() int { return s.params }

// Bind attaches positional arguments. The argument count must match the
// statement's declared parameter count exactly.
func (s *PreparedStatement) Bind(args ...any) (*BoundQuery, error) {
	if len(args) != s.params {
		return nil, &ParamMismatchError{Query: s.query, Want: s.params, Got: len(args)}
	}
	return &BoundQuery{db: s.db, query: s.query, args: args}, nil
}

// MustBind is Bind for statically known arities; it panics on mismatch.
func (s *PreparedStatement) MustBind(args ...any) *BoundQuery {
	q, err := s.Bind(args...)
	if err != nil {
		panic(err)
	}
	return q
}

// First executes the query and returns the first result row, or nil when
// the result set is empty. An empty result is not an error.
func (q *BoundQuery) First(ctx context.Context) (D1Row, error) {
	res, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	return res.Rows[0], nil
}

// All executes the query and returns every result row with metadata.
func (q *BoundQuery) All(ctx context.Context) (*D1Result, error) {
	return awaitOnLoop(ctx, q.db.sched, func() (*D1Result, error) {
		b, err := q.db.backend.Get()
		if err != nil {
			return nil, err
		}
		return b.Query(q.query, q.args)
	})
}

// Run executes the query for its side effects and returns its metadata.
func (q *BoundQuery) Run(ctx context.Context) (*D1Meta, error) {
	res, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	return &res.Meta, nil
}

// Raw executes the query and returns rows as positional value slices in
// column order.
func (q *BoundQuery) Raw(ctx context.Context) ([][]any, error) {
	res, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]any, len(res.Rows))
	for i, row := range res.Rows {
		vals := make([]any, len(res.Columns))
		for j, col := range res.Columns {
			vals[j] = row[col]
		}
		out[i] = vals
	}
	return out, nil
}

// Exec runs one or more semicolon-separated statements without parameters.
func (d *Database) Exec(ctx context.Context, sql string) (*D1Result, error) {
	return awaitOnLoop(ctx, d.sched, func() (*D1Result, error) {
		b, err := d.backend.Get()
		if err != nil {
			return nil, err
		}
		return b.Exec(sql)
	})
}

// Batch executes the queries in order on the loop, stopping at the first
// failure. Results are returned per statement.
func (d *Database) Batch(ctx context.Context, queries []*BoundQuery) ([]*D1Result, error) {
	return awaitOnLoop(ctx, d.sched, func() ([]*D1Result, error) {
		b, err := d.backend.Get()
		if err != nil {
			return nil, err
		}
		out := make([]*D1Result, 0, len(queries))
		for _, q := range queries {
			res, err := b.Query(q.query, q.args)
			if err != nil {
				return nil, err
			}
			out = append(out, res)
		}
		return out, nil
	})
}

// countPlaceholders counts the positional parameters a statement declares:
// anonymous '?' takes the next index, '?N' refers to index N, and the
// declared count is the highest index referenced. Placeholders inside
// string literals, quoted identifiers and comments do not count.
func countPlaceholders(sql string) int {
	next, max := 0, 0
	for i := 0; i < len(sql); i++ {
		switch c := sql[i]; c {
		case '\'', '"', '`':
			// Skip the literal; doubled quotes escape inside it.
			for i++; i < len(sql); i++ {
				if sql[i] == c {
					if i+1 < len(sql) && sql[i+1] == c {
						i++
						continue
					}
					break
				}
			}
		case '-':
			if i+1 < len(sql) && sql[i+1] == '-' {
				for i += 2; i < len(sql) && sql[i] != '\n'; i++ {
				}
			}
		case '/':
			if i+1 < len(sql) && sql[i+1] == '*' {
				for i += 2; i+1 < len(sql); i++ {
					if sql[i] == '*' && sql[i+1] == '/' {
						i++
						break
					}
				}
			}
		case '?':
			n := 0
			j := i + 1
			for ; j < len(sql) && sql[j] >= '0' && sql[j] <= '9'; j++ {
				n = n*10 + int(sql[j]-'0')
			}
			if j > i+1 {
				i = j - 1
			} else {
				next++
				n = next
			}
			if n > max {
				max = n
			}
			if n > next {
				next = n
			}
		}
	}
	return max
}
