package mongostore

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"pokedex-api/internal/shared/query"
)

// 操作符映射：query.Op → MongoDB 查询操作符
var mongoOps = map[query.Op]string{
	query.OpGt:  "$gt",
	query.OpGte: "$gte",
	query.OpLt:  "$lt",
	query.OpLte: "$lte",
	query.OpNe:  "$ne",
	query.OpIn:  "$in",
	query.OpNin: "$nin",
}

// CompileSpec 将查询描述编译为 MongoDB filter 和 find options
//
// 等值条件直接映射（type=fire → {type: "fire"}），
// 比较条件按字段合并（attack_gte=50&attack_lte=90 →
// {attack: {$gte: 50, $lte: 90}}）。
func CompileSpec(spec query.Spec) (bson.D, options.Lister[options.FindOptions]) {
	// 按字段聚合比较操作符
	comparisons := map[string]bson.D{}
	filter := bson.D{}
	for _, cond := range spec.Filter {
		if cond.Op == query.OpEq {
			filter = append(filter, bson.E{Key: cond.Field, Value: cond.Value})
			continue
		}
		comparisons[cond.Field] = append(comparisons[cond.Field],
			bson.E{Key: mongoOps[cond.Op], Value: cond.Value})
	}
	for field, ops := range comparisons {
		filter = append(filter, bson.E{Key: field, Value: ops})
	}

	opts := options.Find().
		SetSkip(int64(spec.Skip())).
		SetLimit(int64(spec.Limit))

	if len(spec.Sort) > 0 {
		sort := bson.D{}
		for _, s := range spec.Sort {
			dir := 1
			if s.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: s.Field, Value: dir})
		}
		opts = opts.SetSort(sort)
	}

	// MongoDB 不允许混用包含/排除投影，包含列表优先
	if len(spec.Projection.Include) > 0 {
		proj := bson.D{}
		for _, f := range spec.Projection.Include {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		opts = opts.SetProjection(proj)
	} else if len(spec.Projection.Exclude) > 0 {
		proj := bson.D{}
		for _, f := range spec.Projection.Exclude {
			proj = append(proj, bson.E{Key: f, Value: 0})
		}
		opts = opts.SetProjection(proj)
	}

	return filter, opts
}
