package httpmetrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/user/login", "/user/login"},
		{"/user/login/", "/user/login"},
		{"/token/refresh/", "/token/refresh/"},
		{"/token/refresh/extra", UnmatchedPath},
		{"/users/0b6c2a4e-3f5d-4c1a-9a8e-1d2f3c4b5a69", UnmatchedPath},
		{"/wp-admin/setup.php", UnmatchedPath},
	}

	for _, tc := range tests {
		if got := NormalizePath(tc.in); got != tc.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
