package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	cases := [...]struct {
		input    string
		expected []string
	}{
		0: {"jdoe@machine.example", []string{"jdoe@machine.example"}},
		1: {"John Doe <jdoe@machine.example>", []string{"jdoe@machine.example"}},
		2: {
			"Mary Smith <mary@x.test>, jdoe@example.org, Who? <one@y.test>",
			[]string{"mary@x.test", "jdoe@example.org", "one@y.test"},
		},
		3: {`"Joe Q. Public" <john.q.public@example.com>`, []string{"john.q.public@example.com"}},
		4: {
			`<boss@nil.test>, "Giant; \"Big\" Box" <sysservices@example.net>`,
			[]string{"boss@nil.test", "sysservices@example.net"},
		},
		5: {
			"A Group:Ed Jones <c@a.test>,joe@where.test,John <jdoe@one.test>;",
			[]string{"c@a.test", "joe@where.test", "jdoe@one.test"},
		},
		6: {"Undisclosed recipients:;", nil},
		7: {
			`Pete(A nice \) chap) <pete(his account)@silly.test(his host)>`,
			[]string{"pete(his account)@silly.test(his host)"},
		},
		8:  {"jdoe@[1.2,3.4]", []string{"jdoe@[1.2,3.4]"}},
		9:  {"a@b (comment, with comma)", []string{"a@b (comment, with comma)"}},
		10: {"Name <a@b", []string{"a@b"}},
		11: {"", nil},
		12: {" a@b ,\r\n c@d", []string{"a@b", "c@d"}},
		13: {`"a,b"@example.com, c@d`, []string{`"a,b"@example.com`, "c@d"}},
	}
	for i, c := range cases {
		assert.Equal(t, c.expected, SplitList(c.input), "#%d: %q", i, c.input)
	}
}
