// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package validation

import (
	stderrors "errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"go.chromium.org/luci/common/errors"
	. "go.chromium.org/luci/common/testing/assertions"
)

func TestValidationTypes(t *testing.T) {
	t.Parallel()

	Convey("type checks", t, func() {
		v := New()

		Convey("valid values", func() {
			v.String("abc", "s")
			v.String(12, "s_num")
			v.String(nil, "s_nil")
			v.Int("42", "i_str")
			v.Int(7.0, "i_float")
			v.Int(uint8(3), "i_uint")
			v.Float("1.5", "f_str")
			v.Float(3, "f_int")
			v.Bool(false, "b")
			v.Array([]string{"a"}, "a")
			v.Array(map[string]int{}, "a_map")
			So(v.IsValid(), ShouldBeTrue)
			So(v.Err(), ShouldBeNil)
		})
		Convey("invalid values", func() {
			v.String(struct{}{}, "s")
			v.Int("4.5", "i", "Not an int")
			v.Int(true, "i_bool")
			v.Float("abc", "f")
			v.Bool(1, "b")
			v.Array("a", "a")
			So(v.IsValid(), ShouldBeFalse)
			So(v.Errors(), ShouldResemble, []FieldError{
				{"s", DefaultTypeMessage},
				{"i", "Not an int"},
				{"i_bool", DefaultTypeMessage},
				{"f", DefaultTypeMessage},
				{"b", DefaultTypeMessage},
				{"a", DefaultTypeMessage},
			})
		})
		Convey("normalized values", func() {
			So(v.Int("42").Value(), ShouldEqual, int64(42))
			So(v.Float("2.5").Value(), ShouldEqual, 2.5)
		})
	})
}

func TestValidationRules(t *testing.T) {
	t.Parallel()

	Convey("rules", t, func() {
		v := New()

		Convey("ItRequired", func() {
			for i, empty := range []any{nil, false, 0, "", "0", 0.0, []int{}} {
				v.String(empty, string(rune('a'+i))).ItRequired("required")
			}
			So(v.Errors(), ShouldHaveLength, 7)

			v2 := New()
			v2.String("0.0").ItRequired("required")
			v2.Int(5).ItRequired("required")
			v2.Array([]int{1}).ItRequired("required")
			So(v2.IsValid(), ShouldBeTrue)
		})
		Convey("lengths count characters", func() {
			v.String("héllo", "name").MinLen(5, "short").MaxLen(5, "long")
			So(v.IsValid(), ShouldBeTrue)
			v.String("héllo", "name").MaxLen(4, "long")
			So(v.FirstError(), ShouldEqual, "long")
			v.Array([]int{1, 2, 3}, "list").MaxLen(2, "too many")
			So(v.IsErrorExist("list"), ShouldBeTrue)
		})
		Convey("Equals and NotEquals are strict", func() {
			v.String("5", "a").Equals(5, "a")
			v.Int("5", "b").Equals(5, "b")
			v.String("x", "c").NotEquals("x", "c")
			v.String("x", "d").Equals("x", "d").NotEquals("y", "d")
			So(v.Errors(), ShouldResemble, []FieldError{{"a", "a"}, {"c", "c"}})
		})
		Convey("Callback", func() {
			v.Int(3, "odd").Callback(func(value any) bool { return value.(int64)%2 == 0 }, "must be even")
			So(v.FirstError(), ShouldEqual, "must be even")
		})
		Convey("Regexp", func() {
			v.String("abc123", "code").Regexp(`^[a-z]+[0-9]+$`, "bad code")
			v.Int(12, "num").Regexp(`^\d{3}$`, "three digits")
			So(v.Errors(), ShouldResemble, []FieldError{{"num", "three digits"}})
		})
		Convey("InArray and NotInArray compare loosely", func() {
			v.String("1", "a").InArray([]any{1, 2}, "a")
			v.Int(3, "b").InArray([]any{"1", "2"}, "b")
			v.String("x", "c").NotInArray([]any{"x"}, "c")
			So(v.Errors(), ShouldResemble, []FieldError{{"b", "b"}, {"c", "c"}})
		})
		Convey("MinValue and MaxValue", func() {
			v.Int(5, "a").MinValue(1, "min").MaxValue(10, "max")
			v.Float(10.5, "b").MaxValue(10, "max")
			v.Int(0, "c").MinValue(1, "min")
			So(v.Errors(), ShouldResemble, []FieldError{{"b", "max"}, {"c", "min"}})
		})
		Convey("Phone", func() {
			v.Phone("+1 (555) 123-4567", "ok")
			v.Phone("555-1234", "short", "Bad phone")
			v.Phone("1234567890123", "long", "Bad phone")
			So(v.Errors(), ShouldResemble, []FieldError{{"short", "Bad phone"}, {"long", "Bad phone"}})
		})
		Convey("Email", func() {
			v.Email("tony@example.com", "ok")
			v.Email("Tony <tony@example.com>", "named")
			v.Email("tony@localhost", "no_dot")
			v.Email("not an email", "garbage")
			So(v.IsErrorExist("ok"), ShouldBeFalse)
			So(v.IsErrorExist("named"), ShouldBeTrue)
			So(v.IsErrorExist("no_dot"), ShouldBeTrue)
			So(v.IsErrorExist("garbage"), ShouldBeTrue)
		})
		Convey("IPAddress", func() {
			v.IPAddress("127.0.0.1", "v4")
			v.IPAddress("::1", "v6")
			v.IPAddress("300.0.0.1", "bad")
			v.IPAddress("fe80::1%eth0", "zone")
			So(v.Errors(), ShouldResemble, []FieldError{{"bad", DefaultTypeMessage}, {"zone", DefaultTypeMessage}})
		})
	})
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	Convey("errors", t, func() {
		v := New()

		Convey("field messages are overwritten in place", func() {
			v.String("", "name").ItRequired("Name is required")
			v.Int(1, "age").MinValue(18, "Too young")
			v.String("", "name").ItRequired("Name is still required")
			v.AddError("custom", "Custom failure")
			So(v.Errors(), ShouldResemble, []FieldError{
				{"name", "Name is still required"},
				{"age", "Too young"},
				{"custom", "Custom failure"},
			})
			field, ok := v.FirstErrorField()
			So(ok, ShouldBeTrue)
			So(field, ShouldEqual, "name")

			err := v.Err()
			var verr *Error
			So(stderrors.As(err, &verr), ShouldBeTrue)
			So(verr.Map(), ShouldResemble, map[string]string{
				"name":   "Name is still required",
				"age":    "Too young",
				"custom": "Custom failure",
			})
			So(err, ShouldErrLike, "name: Name is still required")
		})
		Convey("unnamed failures are appended", func() {
			v.String("").ItRequired("first")
			v.String("").ItRequired("second")
			So(v.Errors(), ShouldHaveLength, 2)
			field, ok := v.FirstErrorField()
			So(ok, ShouldBeTrue)
			So(field, ShouldEqual, "")
		})
		Convey("no failures", func() {
			_, ok := v.FirstErrorField()
			So(ok, ShouldBeFalse)
			So(v.FirstError(), ShouldEqual, "")
		})
		Convey("misused rules", func() {
			v.Bool(true, "b").Regexp(`.`, "regexp on bool")
			v.String("x", "s").Regexp(`(`, "bad pattern")
			v.String("x", "s").InArray(nil, "empty list")
			v.String("x", "s").ItRequired("")
			v.AddError("", "no field")
			err := v.ConfigErr()
			So(errors.Is(err, ErrConfig), ShouldBeTrue)
			So(err, ShouldErrLike, "Regexp cannot be used with bool values")
			So(err, ShouldErrLike, "invalid pattern")
			So(err, ShouldErrLike, "InArray: empty values")
			So(err, ShouldErrLike, "ItRequired: empty message")
			So(err, ShouldErrLike, "AddError: empty field name")
			So(v.IsValid(), ShouldBeTrue)
		})
	})
}
