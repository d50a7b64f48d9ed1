package engine

import (
	"go.mongodb.org/mongo-driver/bson"
)

// ListFilter turns the per-type denials recorded for a branching-type target
// into a query predicate for list endpoints: rows whose type columns match a
// denied type-value tuple are excluded. Returns nil when nothing was denied.
func (e *Engine) ListFilter(targetClass string, info *ValidationInfo) bson.M {
	typenames := info.TargetTypenames
	var conditions []bson.M
	for _, typevalues := range info.TargetTypevalues {
		if info.TypeDenials[TypeDenialKey(targetClass, typenames, typevalues)] == nil {
			continue
		}
		for i, column := range typenames {
			if i >= len(typevalues) {
				break
			}
			conditions = append(conditions, bson.M{column: bson.M{"$ne": typevalues[i]}})
		}
	}
	if len(conditions) == 0 {
		return nil
	}
	return bson.M{"$and": conditions}
}
