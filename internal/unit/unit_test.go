package unit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		path    string
		content string
		want    string
	}{
		{"simple header", "/src/x.pas", "unit Foo;\ninterface\n", "foo"},
		{"no header falls back to stem", "/src/Bar.pas", "interface\nuses X;\n", "bar"},
		{"dotted name", "/src/a.pas", "unit System.SysUtils;\n", "system.sysutils"},
		{"keyword case", "/src/a.pas", "UNIT MixedCase ;\n", "mixedcase"},
		{"leading comments", "/src/a.pas", "// header\n{ licence\n  text }\n(* more *)\n\nunit Commented;\n", "commented"},
		{"comment before header on same line", "/src/a.pas", "{$mode delphi} unit Directive;\n", "directive"},
		{"program stops scan", "/src/Main.dpr", "program Main;\nunit Fake;\n", "main"},
		{"library stops scan", "/src/Lib.dpr", "library Lib;\n", "lib"},
		{"implementation stops scan", "/src/Impl.pas", "implementation\nunit Late;\n", "impl"},
		{"empty file", "/src/Empty.pas", "", "empty"},
		{"missing semicolon", "/src/Broken.pas", "unit Broken\n", "broken"},
		{"escaped name", "/src/e.pas", "unit &Type;\n", "type"},
		{"stem with dots", "/src/Vcl.Forms.pas", "", "vcl.forms"},
		{"byte order mark", "/src/forms_impl.pas", "\xEF\xBB\xBFunit Vcl.Forms;\n", "vcl.forms"},
		{"byte order mark before comment", "/src/c.pas", "\xEF\xBB\xBF{ header }\nunit Marked;\n", "marked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NameFor(tt.path, []byte(tt.content)))
		})
	}
}

func TestHeader_BoundedPrefix(t *testing.T) {
	t.Parallel()
	padding := "// " + strings.Repeat("x", HeaderPrefix) + "\n"
	_, ok := Header([]byte(padding + "unit TooLate;\n"))
	assert.False(t, ok)
}

func TestHeader_PreservesCase(t *testing.T) {
	t.Parallel()
	name, ok := Header([]byte("unit MyUnit;"))
	assert.True(t, ok)
	assert.Equal(t, "MyUnit", name)
}

func TestIsSourceFile(t *testing.T) {
	t.Parallel()
	assert.True(t, IsSourceFile("a.pas"))
	assert.True(t, IsSourceFile("A.PAS"))
	assert.True(t, IsSourceFile("project.dpr"))
	assert.True(t, IsSourceFile("fpc.pp"))
	assert.False(t, IsSourceFile("readme.md"))
	assert.False(t, IsSourceFile("project.dproj"))
}
