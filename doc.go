/*
sqlorm is a small object-relational mapping layer for MySQL.

Record types are Go structs whose `db` tags name the columns of a table.
Each record type is declared once, together with an ordered list of field
descriptors, and the SQL needed to read and write it is derived at that point.
Statements run on a [Pool], which leases one connection per statement.

# Basics

Given the following record type:

	type User struct {
		ID    string `db:"id"`
		Name  string `db:"name"`
		Admin bool   `db:"admin"`
	}

It is declared with [MustDefine], usually at package level, so that a
mistake in the declaration stops the program before any record is used:

	var users = sqlorm.MustDefine[User]("users",
		sqlorm.StringField("id", sqlorm.PrimaryKey(), sqlorm.DDL("varchar(50)")),
		sqlorm.StringField("name"),
		sqlorm.BooleanField("admin"),
	)

This derives the following templates:

	select `id`, `name`, `admin` from `users`
	insert into `users` (`name`, `admin`, `id`) values (?, ?, ?)
	update `users` set `name`=?, `admin`=? where `id` = ?
	delete from `users` where `id` = ?

Exactly one field must be the primary key.

# Pools

A pool is created from [Options], which can be read from a YAML file with
[LoadOptions]:

	pool, err := sqlorm.CreatePool(ctx, sqlorm.Options{
		User:     "www",
		Password: "www",
		Database: "awesome",
	})
	...
	defer pool.Close()

[Pool.Select] and [Pool.Execute] run raw statements with `?` placeholders.

# Records

	u := &User{ID: "1", Name: "Alice"}
	_, err := users.Save(ctx, pool, u)
	...
	found, err := users.Find(ctx, pool, "1") // nil if there is no such user

Save, Update and Remove return a [Result]. A mutation that affects a number of
rows other than one is logged as a warning and does not return an error;
[Result.Err] turns it into one.

Fields holding their zero value are unset. On save, an unset field with a
default is set to the default before the record is inserted. Fields that need
to store a zero value distinct from unset should use a pointer or a
sql.Null* type.
*/
package sqlorm
