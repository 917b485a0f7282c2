package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string `json:"name" validate:"required,min=3,max=5"`
	Capacity int    `json:"capacity" validate:"gte=2,lte=50"`
	Kind     string `json:"kind" validate:"oneof=a b"`
	Internal string `json:"-" validate:"max=1"`
}

func TestStruct_Valid(t *testing.T) {
	t.Parallel()
	require.Nil(t, Struct(sample{Name: "abcd", Capacity: 10, Kind: "a"}))
}

func TestStruct_FieldMessagesUseJSONNames(t *testing.T) {
	t.Parallel()

	got := Struct(sample{Name: "ab", Capacity: 51, Kind: "c"})
	require.Equal(t, map[string]any{
		"name":     "must be at least 3 characters",
		"capacity": "must be at most 50",
		"kind":     "must be one of: a, b",
	}, got)

	got = Struct(sample{Capacity: 1, Kind: "b"})
	require.Equal(t, "is required", got["name"])
	require.Equal(t, "must be at least 2", got["capacity"])
}
