package sqlorm_test

import (
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlorm"
)

type SchemaSuite struct{}

var _ = Suite(&SchemaSuite{})

func (s *SchemaSuite) TestTemplates(c *C) {
	schema := users.Schema()
	c.Assert(schema.Table, Equals, "users")
	c.Assert(schema.PrimaryKey, Equals, "id")
	c.Assert(schema.Fields, DeepEquals, []string{"email", "name", "admin", "image", "created_at"})
	c.Assert(schema.Columns(), DeepEquals, []string{"id", "email", "name", "admin", "image", "created_at"})
	c.Assert(schema.BindOrder(), DeepEquals, []string{"email", "name", "admin", "image", "created_at", "id"})

	c.Assert(schema.Select, Equals, "select `id`, `email`, `name`, `admin`, `image`, `created_at` from `users`")
	c.Assert(schema.Insert, Equals, "insert into `users` (`email`, `name`, `admin`, `image`, `created_at`, `id`) values (?, ?, ?, ?, ?, ?)")
	c.Assert(schema.Update, Equals, "update `users` set `email`=?, `name`=?, `admin`=?, `image`=?, `created_at`=? where `id` = ?")
	c.Assert(schema.Delete, Equals, "delete from `users` where `id` = ?")
}

func (s *SchemaSuite) TestPrimaryKeyNotFirst(c *C) {
	schema, err := sqlorm.NewSchema("blogs",
		sqlorm.StringField("name"),
		sqlorm.StringField("id", sqlorm.PrimaryKey()),
		sqlorm.IntegerField("views"),
	)
	c.Assert(err, IsNil)
	c.Assert(schema.Select, Equals, "select `id`, `name`, `views` from `blogs`")
	c.Assert(schema.Insert, Equals, "insert into `blogs` (`name`, `views`, `id`) values (?, ?, ?)")
	c.Assert(schema.Update, Equals, "update `blogs` set `name`=?, `views`=? where `id` = ?")
}

func (s *SchemaSuite) TestPrimaryKeyOnly(c *C) {
	schema, err := sqlorm.NewSchema("tags", sqlorm.StringField("tag", sqlorm.PrimaryKey()))
	c.Assert(err, IsNil)
	c.Assert(schema.Select, Equals, "select `tag` from `tags`")
	c.Assert(schema.Insert, Equals, "insert into `tags` (`tag`) values (?)")
	c.Assert(schema.Update, Equals, "")
	c.Assert(schema.Delete, Equals, "delete from `tags` where `tag` = ?")
}

func (s *SchemaSuite) TestSchemaErrors(c *C) {
	var tests = []struct {
		summary string
		table   string
		fields  []sqlorm.Field
		err     string
	}{{
		summary: "no primary key",
		table:   "t",
		fields:  []sqlorm.Field{sqlorm.StringField("a"), sqlorm.StringField("b")},
		err:     `primary key not found in table "t"`,
	}, {
		summary: "no fields",
		table:   "t",
		err:     `primary key not found in table "t"`,
	}, {
		summary: "two primary keys",
		table:   "t",
		fields: []sqlorm.Field{
			sqlorm.StringField("a", sqlorm.PrimaryKey()),
			sqlorm.StringField("b", sqlorm.PrimaryKey()),
		},
		err: "duplicate primary key for field: b",
	}, {
		summary: "boolean primary key is ignored",
		table:   "t",
		fields:  []sqlorm.Field{sqlorm.BooleanField("a", sqlorm.PrimaryKey())},
		err:     `primary key not found in table "t"`,
	}, {
		summary: "text primary key is ignored",
		table:   "t",
		fields:  []sqlorm.Field{sqlorm.TextField("a", sqlorm.PrimaryKey())},
		err:     `primary key not found in table "t"`,
	}, {
		summary: "duplicate field",
		table:   "t",
		fields: []sqlorm.Field{
			sqlorm.StringField("a", sqlorm.PrimaryKey()),
			sqlorm.IntegerField("b"),
			sqlorm.StringField("b"),
		},
		err: `duplicate field "b" in table "t"`,
	}, {
		summary: "unsafe table name",
		table:   "t; drop table users",
		fields:  []sqlorm.Field{sqlorm.StringField("a", sqlorm.PrimaryKey())},
		err:     `unsafe table name "t; drop table users"`,
	}, {
		summary: "unsafe column name",
		table:   "t",
		fields:  []sqlorm.Field{sqlorm.StringField("a`b", sqlorm.PrimaryKey())},
		err:     "unsafe column name \"a`b\" in table \"t\"",
	}}

	for i, t := range tests {
		_, err := sqlorm.NewSchema(t.table, t.fields...)
		c.Assert(err, ErrorMatches, t.err, Commentf("test %d failed (%s)", i, t.summary))
	}

	c.Assert(func() { sqlorm.MustSchema("t") }, PanicMatches, `primary key not found in table "t"`)
}

type noTags struct {
	ID   string
	Name string `db:"name"`
}

type badTag struct {
	ID string `db:"id,bogus"`
}

func (s *SchemaSuite) TestDefineErrors(c *C) {
	_, err := sqlorm.Define[noTags]("t", sqlorm.StringField("id", sqlorm.PrimaryKey()), sqlorm.StringField("name"))
	c.Assert(err, ErrorMatches, `record type noTags has no field tagged db:"id"`)

	_, err = sqlorm.Define[User]("users", sqlorm.StringField("id", sqlorm.PrimaryKey()), sqlorm.StringField("nickname"))
	c.Assert(err, ErrorMatches, `record type User has no field tagged db:"nickname"`)

	_, err = sqlorm.Define[badTag]("t", sqlorm.StringField("id", sqlorm.PrimaryKey()))
	c.Assert(err, ErrorMatches, `record type badTag: .*`)

	_, err = sqlorm.Define[int]("t", sqlorm.StringField("id", sqlorm.PrimaryKey()))
	c.Assert(err, ErrorMatches, "record type must be a struct, got int")

	_, err = sqlorm.Define[User]("users", sqlorm.StringField("id"))
	c.Assert(err, ErrorMatches, `primary key not found in table "users"`)

	c.Assert(func() {
		sqlorm.MustDefine[User]("users", sqlorm.StringField("name"))
	}, PanicMatches, `primary key not found in table "users"`)
}

func (s *SchemaSuite) TestDefineDefaultTableName(c *C) {
	t, err := sqlorm.Define[User]("", sqlorm.StringField("id", sqlorm.PrimaryKey()), sqlorm.StringField("name"))
	c.Assert(err, IsNil)
	c.Assert(t.Schema().Table, Equals, "User")
	c.Assert(t.Schema().Select, Equals, "select `id`, `name` from `User`")
}

func (s *SchemaSuite) TestDefineLogsToStandardLogger(c *C) {
	std := logrus.StandardLogger()
	defer std.ReplaceHooks(std.ReplaceHooks(make(logrus.LevelHooks)))
	defer std.SetLevel(std.GetLevel())
	std.SetLevel(logrus.DebugLevel)
	hook := logtest.NewLocal(std)

	_, err := sqlorm.Define[User]("people", sqlorm.StringField("id", sqlorm.PrimaryKey()))
	c.Assert(err, IsNil)
	entry := hook.LastEntry()
	c.Assert(entry, NotNil)
	c.Assert(entry.Level, Equals, logrus.DebugLevel)
	c.Assert(entry.Message, Equals, "found model: User")
	c.Assert(entry.Data["table"], Equals, "people")
}

func (s *SchemaSuite) TestFields(c *C) {
	var tests = []struct {
		field      sqlorm.Field
		kind       sqlorm.FieldKind
		columnType string
		def        any
		str        string
	}{{
		field:      sqlorm.StringField("name"),
		kind:       sqlorm.StringKind,
		columnType: "varchar(100)",
		str:        "<StringField, varchar(100):name>",
	}, {
		field:      sqlorm.StringField("name", sqlorm.DDL("varchar(50)")),
		kind:       sqlorm.StringKind,
		columnType: "varchar(50)",
		str:        "<StringField, varchar(50):name>",
	}, {
		field:      sqlorm.BooleanField("admin"),
		kind:       sqlorm.BooleanKind,
		columnType: "boolean",
		def:        false,
		str:        "<BooleanField, boolean:admin>",
	}, {
		field:      sqlorm.IntegerField("views"),
		kind:       sqlorm.IntegerKind,
		columnType: "bigint",
		def:        int64(0),
		str:        "<IntegerField, bigint:views>",
	}, {
		field:      sqlorm.FloatField("created_at"),
		kind:       sqlorm.FloatKind,
		columnType: "real",
		def:        0.0,
		str:        "<FloatField, real:created_at>",
	}, {
		field:      sqlorm.TextField("content"),
		kind:       sqlorm.TextKind,
		columnType: "text",
		str:        "<TextField, text:content>",
	}, {
		field:      sqlorm.NewField("data", "blob", sqlorm.Default([]byte{})),
		kind:       sqlorm.GenericKind,
		columnType: "blob",
		def:        []byte{},
		str:        "<Field, blob:data>",
	}}

	for i, t := range tests {
		comment := Commentf("test %d failed (%s)", i, t.str)
		c.Assert(t.field.Kind, Equals, t.kind, comment)
		c.Assert(t.field.ColumnType, Equals, t.columnType, comment)
		c.Assert(t.field.HasDefault(), Equals, t.def != nil, comment)
		c.Assert(t.field.DefaultValue(), DeepEquals, t.def, comment)
		c.Assert(t.field.String(), Equals, t.str, comment)
		c.Assert(t.field.PrimaryKey, Equals, false, comment)
	}
}

func (s *SchemaSuite) TestDefaultProducer(c *C) {
	n := 0
	f := sqlorm.IntegerField("seq", sqlorm.Default(func() any { n++; return int64(n) }))
	c.Assert(f.HasDefault(), Equals, true)
	c.Assert(f.DefaultValue(), Equals, int64(1))
	c.Assert(f.DefaultValue(), Equals, int64(2))
}

func (s *SchemaSuite) TestFindAllQuery(c *C) {
	var tests = []struct {
		summary string
		opts    sqlorm.FindOptions
		query   string
		args    []any
	}{{
		summary: "no options",
		query:   "select `id`, `email`, `name`, `admin`, `image`, `created_at` from `users`",
	}, {
		summary: "where",
		opts:    sqlorm.FindOptions{Where: "name = ?", Args: []any{"Bob"}},
		query:   "select `id`, `email`, `name`, `admin`, `image`, `created_at` from `users` where name = ?",
		args:    []any{"Bob"},
	}, {
		summary: "order and count",
		opts:    sqlorm.FindOptions{OrderBy: "created_at desc", Limit: sqlorm.LimitTo(5)},
		query:   "select `id`, `email`, `name`, `admin`, `image`, `created_at` from `users` order by created_at desc limit ?",
		args:    []any{5},
	}, {
		summary: "where and range",
		opts:    sqlorm.FindOptions{Where: "admin = ?", Args: []any{true}, Limit: sqlorm.LimitRange(10, 5)},
		query:   "select `id`, `email`, `name`, `admin`, `image`, `created_at` from `users` where admin = ? limit ?, ?",
		args:    []any{true, 10, 5},
	}}

	for i, t := range tests {
		query, args := users.FindAllQuery(t.opts)
		c.Assert(query, Equals, t.query, Commentf("test %d failed (%s)", i, t.summary))
		c.Assert(args, DeepEquals, t.args, Commentf("test %d failed (%s)", i, t.summary))
	}
}

func (s *SchemaSuite) TestQuestionMarks(c *C) {
	c.Assert(sqlorm.QuestionMarks(1), Equals, "?")
	c.Assert(sqlorm.QuestionMarks(3), Equals, "?, ?, ?")
	c.Assert(func() { sqlorm.QuestionMarks(0) }, PanicMatches, "sqlorm.QuestionMarks called with n <= 0")
}

func (s *SchemaSuite) TestResultErr(c *C) {
	r := sqlorm.Result{Op: sqlorm.OpSave, Table: "users", RowsAffected: 1}
	c.Assert(r.Matched(), Equals, true)
	c.Assert(r.Err(), IsNil)

	r = sqlorm.Result{Op: sqlorm.OpUpdate, Table: "users", RowsAffected: 2}
	c.Assert(r.Matched(), Equals, false)
	c.Assert(r.Err(), ErrorMatches, `failed to update "users" by primary key: affected rows: 2: affected row count is not 1`)
}
