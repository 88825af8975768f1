package bind

import (
	"testing"

	perr "reddcrawl/internal/platform/errors"
)

type boardQuery struct {
	Limit int    `query:"limit" validate:"omitempty,min=1,max=1000"`
	Kind  string `json:"kind" validate:"required,oneof=authors domains"`
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    boardQuery
		field string
		msg   string
	}{
		{"ok", boardQuery{Limit: 5, Kind: "authors"}, "", ""},
		{"too large", boardQuery{Limit: 5000, Kind: "authors"}, "limit", "limit must be at most 1000"},
		{"enum", boardQuery{Kind: "users"}, "kind", "kind must be one of [authors domains]"},
		{"required", boardQuery{}, "kind", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected %v", err)
				}
				return
			}
			if !perr.IsCode(err, perr.ErrorCodeValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
			pe, ok := perr.As(err)
			if !ok || pe.Field() != tc.field {
				t.Fatalf("field = %v", err)
			}
			if tc.msg != "" && pe.Error() != tc.msg {
				t.Fatalf("msg = %q, want %q", pe.Error(), tc.msg)
			}
		})
	}
}

func TestValidate_NotAStruct(t *testing.T) {
	t.Parallel()

	if err := Validate(42); !perr.IsCode(err, perr.ErrorCodeUnknown) {
		t.Fatalf("err = %v", err)
	}
}
