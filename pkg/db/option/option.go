package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption customizes a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// Condition expresses a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type conditionOption struct {
	cond Condition
}

func ApplyOperator(cond Condition) QueryOption {
	return conditionOption{cond: cond}
}

func (o conditionOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(fmt.Sprintf("%s %s ?", o.cond.Field, o.cond.Operator), o.cond.Value)
}

type limitOption struct {
	limit int
}

func WithLimit(limit int) QueryOption {
	return limitOption{limit: limit}
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	if o.limit <= 0 {
		return db
	}
	return db.Limit(o.limit)
}

type orderOption struct {
	order string
}

func WithOrder(order string) QueryOption {
	return orderOption{order: order}
}

func (o orderOption) Apply(db *gorm.DB) *gorm.DB {
	if o.order == "" {
		return db
	}
	return db.Order(o.order)
}
