// Package query 将请求查询串解析为过滤/排序/投影/分页描述
//
// 解析是纯转换，不触碰存储：mongostore 负责把 Spec 编译为
// MongoDB 的 filter 和 find options。
//
// 语法（与列表接口约定一致）：
//   - 保留键 page、sort、limit、fields 不参与过滤
//   - field_op（如 attack_gte=50）→ 比较谓词，支持 gte/gt/lte/lt/ne/in/nin
//   - 裸键（如 type=fire）→ 等值匹配
//   - 数字值自动转为数值类型，其余保持字符串
//   - 配置的多值字段（如 species）按逗号拆分为 in 谓词
//   - sort=-speed,name → 按序排列，- 前缀为降序；未指定时用默认排序
//   - fields=name,attack → 投影；- 前缀为排除
//   - page/limit 为正整数，默认 page=1、limit=100，offset=(page-1)*limit
package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Op 比较操作符
type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpNe  Op = "ne"
	OpIn  Op = "in"
	OpNin Op = "nin"
)

// 分页默认值
const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// 保留键，永远不作为过滤条件
var reservedKeys = map[string]bool{
	"page":   true,
	"sort":   true,
	"limit":  true,
	"fields": true,
}

// 合法的操作符后缀
var knownOps = map[string]Op{
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
	"ne":  OpNe,
	"in":  OpIn,
	"nin": OpNin,
}

// Condition 单个过滤谓词
// Value 为 float64、string 或 []interface{}（in/nin）
type Condition struct {
	Field string
	Op    Op
	Value interface{}
}

// SortField 排序字段
type SortField struct {
	Field string
	Desc  bool
}

// Projection 字段投影
type Projection struct {
	Include []string
	Exclude []string
}

// Spec 规范化后的查询描述
type Spec struct {
	Filter     []Condition
	Sort       []SortField
	Projection Projection
	Page       int
	Limit      int
}

// Skip 计算分页偏移
func (s Spec) Skip() int {
	return (s.Page - 1) * s.Limit
}

// Options 按资源配置的解析选项
type Options struct {
	// DefaultSort 未指定 sort 参数时的排序，如 "-attack"
	DefaultSort string

	// MultiValueFields 按逗号拆分为 in 谓词的字段（如 species）
	MultiValueFields map[string]bool
}

// Parse 将查询参数解析为 Spec
//
// 同一个键出现多次时只取第一个值（url.Values.Get 语义）。
func Parse(values url.Values, opts Options) Spec {
	spec := Spec{
		Page:  DefaultPage,
		Limit: DefaultLimit,
	}

	// 过滤条件（遍历所有非保留键）
	for key := range values {
		if reservedKeys[key] {
			continue
		}
		value := values.Get(key)

		field, op := splitOperator(key)

		if opts.MultiValueFields[field] || op == OpIn || op == OpNin {
			// 多值字段：逗号拆分为成员谓词
			if op != OpNin {
				op = OpIn
			}
			spec.Filter = append(spec.Filter, Condition{Field: field, Op: op, Value: splitValues(value)})
			continue
		}

		spec.Filter = append(spec.Filter, Condition{Field: field, Op: op, Value: coerce(value)})
	}

	// 排序
	sortParam := values.Get("sort")
	if sortParam == "" {
		sortParam = opts.DefaultSort
	}
	spec.Sort = parseSort(sortParam)

	// 投影
	for _, f := range strings.Split(values.Get("fields"), ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.HasPrefix(f, "-") {
			spec.Projection.Exclude = append(spec.Projection.Exclude, f[1:])
		} else {
			spec.Projection.Include = append(spec.Projection.Include, f)
		}
	}

	// 分页
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 0 {
		spec.Page = page
	}
	if limit, err := strconv.Atoi(values.Get("limit")); err == nil && limit > 0 {
		spec.Limit = limit
	}

	return spec
}

// splitOperator 从查询键中分离字段名与操作符
//
// 按最后一个下划线切分并检查后缀是否为已知操作符，
// 因此 special_attack=50 是等值匹配，special_attack_gte=50 是比较谓词。
func splitOperator(key string) (string, Op) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 {
		return key, OpEq
	}
	if op, ok := knownOps[key[idx+1:]]; ok {
		return key[:idx], op
	}
	return key, OpEq
}

// coerce 字符串能解析为数字时转为 float64
func coerce(value string) interface{} {
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return n
	}
	return value
}

// splitValues 逗号拆分并逐个做数值转换
func splitValues(value string) []interface{} {
	parts := strings.Split(value, ",")
	out := make([]interface{}, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, coerce(p))
	}
	return out
}

// parseSort 解析逗号分隔的排序列表
func parseSort(param string) []SortField {
	var out []SortField
	for _, f := range strings.Split(param, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.HasPrefix(f, "-") {
			out = append(out, SortField{Field: f[1:], Desc: true})
		} else {
			out = append(out, SortField{Field: f})
		}
	}
	return out
}
