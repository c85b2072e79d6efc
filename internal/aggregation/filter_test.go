package aggregation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go-aggregation-engine/internal/model"
)

func TestMatch(t *testing.T) {
	rec := model.Record{"name": "Widget Pro", "price": 25, "qty": "3", "tag": nil, "region": "East"}

	for _, tc := range []struct {
		name     string
		field    string
		operator string
		value    interface{}
		want     bool
	}{
		{name: "equals", field: "region", operator: "equals", value: "East", want: true},
		{name: "equals is case sensitive", field: "region", operator: "equals", value: "east", want: false},
		{name: "equals numeric string", field: "qty", operator: "equals", value: 3, want: true},
		{name: "notEquals", field: "region", operator: "notEquals", value: "West", want: true},
		{name: "greaterThan", field: "price", operator: "greaterThan", value: 20, want: true},
		{name: "gt", field: "price", operator: "gt", value: 25, want: false},
		{name: "lessThan", field: "qty", operator: "lessThan", value: 10, want: true},
		{name: "lt string", field: "region", operator: "lt", value: "F", want: true},
		{name: "gte", field: "price", operator: "gte", value: 25, want: true},
		{name: "lte", field: "price", operator: "lte", value: 24.99, want: false},
		{name: "gt incomparable", field: "region", operator: "gt", value: 3, want: false},
		{name: "in", field: "region", operator: "in", value: []interface{}{"West", "East"}, want: true},
		{name: "in typed list", field: "price", operator: "in", value: []int{1, 25}, want: true},
		{name: "not in", field: "region", operator: "in", value: []string{"North"}, want: false},
		{name: "in scalar", field: "region", operator: "in", value: "East", want: true},
		{name: "like", field: "name", operator: "like", value: "Pro", want: true},
		{name: "contains", field: "name", operator: "contains", value: "pro", want: false},
		{name: "contains number", field: "price", operator: "contains", value: 2, want: true},
		{name: "unknown operator is equals", field: "region", operator: "startsWith", value: "East", want: true},
		{name: "unknown operator mismatch", field: "region", operator: "startsWith", value: "Ea", want: false},
		{name: "missing field", field: "nope", operator: "notEquals", value: "x", want: false},
		{name: "null field", field: "tag", operator: "notEquals", value: "x", want: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Match(rec, tc.field, tc.operator, tc.value))
		})
	}
}

func TestFilterRecordsIsConjunctive(t *testing.T) {
	records := []model.Record{
		{"region": "East", "sales": 10},
		{"region": "East", "sales": 5},
		{"region": "West", "sales": 7},
		{"sales": 100},
	}

	got := FilterRecords(records, []model.FilterSpec{
		{Field: "region", Operator: "equals", Value: "East"},
		{Field: "sales", Operator: "gte", Value: 6},
	})
	assert.Equal(t, []model.Record{{"region": "East", "sales": 10}}, got)

	assert.Len(t, FilterRecords(records, nil), 4)
	assert.Empty(t, FilterRecords(records, []model.FilterSpec{{Field: "region", Operator: "in", Value: []string{}}}))
}
