// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package db

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"go.chromium.org/luci/common/errors"
)

func TestRequest(t *testing.T) {
	t.Parallel()

	Convey("Request", t, func() {
		Convey("Where before Compile", func() {
			_, err := NewRequest().Is("a", 1).Where()
			So(errors.Is(err, ErrBadCall), ShouldBeTrue)
		})
		Convey("default operator and relation", func() {
			r := NewRequest().
				Is("u.id", []int{1, 2}).
				Add("age", Condition{Op: MoreEqual, Value: 18}, Condition{Op: IsNull}).
				Is("deleted_at", IsNotNull).
				OrderBy("age", OrderDesc).
				SetLimit(10, 2)
			So(r.Compile(), ShouldBeNil)

			where, err := r.Where()
			So(err, ShouldBeNil)
			So(where, ShouldEqual, "WHERE (u.id IN (:u_id_1)) AND (age >= :age_2 OR age IS NULL) AND (deleted_at IS NOT NULL)")
			So(r.Binds(), ShouldResemble, Binds{":u_id_1": []int{1, 2}, ":age_2": 18})
			So(r.OrderByClause(), ShouldEqual, "ORDER BY age DESC")
			So(r.Limit(), ShouldEqual, " LIMIT 10, 10 ")
		})
		Convey("OR relation and custom default operator", func() {
			r := NewRequest().SetRelation(RelationOr).SetOperator(Like).
				Is("name", "To%").
				Add("name", Condition{Op: NotLike, Value: "%x"}).
				Is("email", "%@x.io")
			So(r.Compile(), ShouldBeNil)
			where, err := r.Where()
			So(err, ShouldBeNil)
			So(where, ShouldEqual, "WHERE (name LIKE :name_1 OR name NOT LIKE :name_2) OR (email LIKE :email_3)")
		})
		Convey("placeholder names stay unique across columns", func() {
			r := NewRequest().Is("a1", "first")
			for i := 0; i < 9; i++ {
				r.Is("b", i)
			}
			r.Is("a", "second")
			So(r.Compile(), ShouldBeNil)

			where, err := r.Where()
			So(err, ShouldBeNil)
			So(where, ShouldStartWith, "WHERE (a1 IN (:a1_1)) AND (b IN (:b_2) OR ")
			So(where, ShouldEndWith, " AND (a IN (:a_11))")
			binds := r.Binds()
			So(binds, ShouldHaveLength, 11)
			So(binds[":a1_1"], ShouldEqual, "first")
			So(binds[":a_11"], ShouldEqual, "second")
		})
		Convey("no conditions", func() {
			r := NewRequest()
			So(r.Compile(), ShouldBeNil)
			where, err := r.Where()
			So(err, ShouldBeNil)
			So(where, ShouldEqual, "")
		})
		Convey("invalid input", func() {
			So(errors.Is(NewRequest().SetRelation("XOR").Compile(), ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(NewRequest().SetOperator("~").Compile(), ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(NewRequest().Add("a", Condition{Op: "~", Value: 1}).Compile(), ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(NewRequest().Is("a", Like).Compile(), ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(NewRequest().Add("a").Compile(), ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(NewRequest().OrderBy("a", "UP").Compile(), ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(NewRequest().SetLimit(0, 1).Compile(), ErrInvalidArgument), ShouldBeTrue)
		})
		Convey("Hash", func() {
			a := NewRequest().Is("a", 1).OrderBy("a", OrderAsc)
			b := NewRequest().Is("a", 1).OrderBy("a", OrderAsc)
			c := NewRequest().Is("a", 2).OrderBy("a", OrderAsc)
			So(a.Hash(), ShouldEqual, b.Hash())
			So(a.Hash(), ShouldNotEqual, c.Hash())
		})
	})
}

func TestLimitString(t *testing.T) {
	t.Parallel()

	Convey("LimitString", t, func() {
		So(LimitString(10, 1), ShouldEqual, " LIMIT 10 ")
		So(LimitString(10, 3), ShouldEqual, " LIMIT 20, 10 ")
		So(LimitString(0, 1), ShouldEqual, "")
		So(LimitString(10, 0), ShouldEqual, "")
	})
}
