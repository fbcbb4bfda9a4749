// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"math"
	"strconv"
	"strings"

	"github.com/poiesic/itemstore/core"
)

// SQL shared by the PostgreSQL backends.
const (
	ItemSchemaSQL = `create table if not exists item (
    id        bigserial primary key,
    item_name varchar(10),
    price     integer,
    quantity  integer
)`

	InsertItemSQL     = "insert into item (item_name, price, quantity) values ($1, $2, $3) returning id"
	UpdateItemSQL     = "update item set item_name = $1, price = $2, quantity = $3 where id = $4"
	SelectItemByIDSQL = "select id, item_name, price, quantity from item where id = $1"
	SelectItemsSQL    = "select id, item_name, price, quantity from item"
)

// FindItemsQuery returns the full select statement and args for cond,
// ordered by id.
func FindItemsQuery(cond core.SearchCondition) (string, []any) {
	where, args := BuildWhere(cond, Dollar)
	return SelectItemsSQL + where + " order by id", args
}

// Placeholder renders the n-th (1-based) bind parameter of a SQL statement.
type Placeholder func(n int) string

// Dollar renders PostgreSQL style parameters ($1, $2, ...).
func Dollar(n int) string {
	return "$" + strconv.Itoa(n)
}

// Question renders positional "?" parameters.
func Question(int) string {
	return "?"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters so the value only ever matches
// as a literal substring. Backslash is the default LIKE escape character.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// PriceBound fits a max price filter into the range of the integer price
// column. Bounds above the column range are clamped to its maximum, which
// every stored price satisfies. ok is false when the bound is below every
// value the column can hold.
func PriceBound(maxPrice int) (bound int, ok bool) {
	switch {
	case maxPrice > math.MaxInt32:
		return math.MaxInt32, true
	case maxPrice < math.MinInt32:
		return math.MinInt32, false
	}
	return maxPrice, true
}

// Unsatisfiable reports whether no row of the item table can match cond.
// Relational backends return an empty result for it without querying.
func Unsatisfiable(cond core.SearchCondition) bool {
	if !cond.PriceFilterActive() {
		return false
	}
	_, ok := PriceBound(*cond.MaxPrice)
	return !ok
}

// BuildWhere assembles the filter clause for cond.
//
// The clause is empty when no filter is active. Otherwise it starts with
// " where" followed by the name predicate, the price predicate, or both
// joined by " and". The returned args line up with the placeholders.
// Callers check Unsatisfiable first.
func BuildWhere(cond core.SearchCondition, ph Placeholder) (string, []any) {
	if cond.IsEmpty() {
		return "", nil
	}

	var (
		sb      strings.Builder
		args    []any
		andFlag bool
	)
	sb.WriteString(" where")
	if cond.NameFilterActive() {
		args = append(args, EscapeLike(cond.ItemName))
		sb.WriteString(" item_name like '%' || ")
		sb.WriteString(ph(len(args)))
		sb.WriteString(" || '%'")
		andFlag = true
	}
	if cond.PriceFilterActive() {
		if andFlag {
			sb.WriteString(" and")
		}
		bound, _ := PriceBound(*cond.MaxPrice)
		args = append(args, bound)
		sb.WriteString(" price <= ")
		sb.WriteString(ph(len(args)))
	}
	return sb.String(), args
}
