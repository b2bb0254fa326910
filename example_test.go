package ldapdb_test

import (
	"fmt"

	"github.com/isometry/ldapdb"
	"github.com/isometry/ldapdb/directory"
)

func ExampleNewSchema() {
	groups, err := ldapdb.NewSchema(
		[]string{"posixGroup"},
		"ou=groups,dc=example,dc=org",
		directory.ScopeSubtree,
		[]ldapdb.Field{
			{Name: "name", Attr: "cn", Type: ldapdb.Text, PrimaryKey: true},
			{Name: "gid", Attr: "gidNumber", Type: ldapdb.Integer},
			{Name: "members", Attr: "memberUid", Type: ldapdb.TextList},
		},
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(groups.BaseDN())
	// Output: ou=groups,dc=example,dc=org
}

func ExampleQuery_FilterString() {
	groups, _ := ldapdb.NewSchema(
		[]string{"posixGroup"},
		"ou=groups,dc=example,dc=org",
		directory.ScopeSubtree,
		[]ldapdb.Field{
			{Name: "name", Attr: "cn", Type: ldapdb.Text, PrimaryKey: true},
			{Name: "gid", Attr: "gidNumber", Type: ldapdb.Integer},
		},
	)

	q := groups.Query().
		Filter(ldapdb.StartsWith("name", "foo"), ldapdb.Gte("gid", 1000)).
		Exclude(ldapdb.Eq("name", "foogroup"))

	filter, _ := q.FilterString()
	fmt.Println(filter)
	// Output: (&(objectClass=posixGroup)(&(cn=foo*)(gidNumber>=1000)(!(cn=foogroup))))
}
