package postgres

import (
	"fmt"
	"strings"

	"github.com/pthm/reltuple/core"
)

// buildWhere renders filter as a parameterized SQL WHERE clause (without the
// WHERE keyword) and its positional args. An empty filter renders as TRUE:
// from FindTuples that is a legitimate "everything" scan; Delete rejects an
// empty filter before reaching here.
func buildWhere(filter core.TupleFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Subject != nil {
		add("subject_type = $%d", filter.Subject.Type)
		add("subject_id = $%d", filter.Subject.ID)
	} else if filter.SubjectType != "" {
		add("subject_type = $%d", filter.SubjectType)
	}
	if filter.Relation != "" {
		add("relation = $%d", filter.Relation)
	}
	if filter.Object != nil {
		add("object_type = $%d", filter.Object.Type)
		add("object_id = $%d", filter.Object.ID)
	} else if filter.ObjectType != "" {
		add("object_type = $%d", filter.ObjectType)
	}

	if len(clauses) == 0 {
		return "TRUE", args
	}
	return strings.Join(clauses, " AND "), args
}
