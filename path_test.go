package asar

import "testing"

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"/", ""},
		{".", ""},
		{"./", ""},
		{"a.txt", "a.txt"},
		{"/a.txt", "a.txt"},
		{"./a.txt", "a.txt"},
		{"dir/sub/file.txt", "dir/sub/file.txt"},
		{"dir//sub///file.txt", "dir/sub/file.txt"},
		{"dir/./sub/file.txt", "dir/sub/file.txt"},
		{"dir/sub/../file.txt", "dir/file.txt"},
		{"dir/../../file.txt", "file.txt"},
		{"..", ""},
		{"../..", ""},
		{`dir\sub\file.txt`, "dir/sub/file.txt"},
		{`\dir\file.txt`, "dir/file.txt"},
		{"dir/sub/", "dir/sub"},
	}

	for _, tc := range cases {
		if got := NormalizePath(tc.raw); got != tc.want {
			t.Fatalf("NormalizePath(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
