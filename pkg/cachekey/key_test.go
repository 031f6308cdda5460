package cachekey

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mangaList = Builder{Params: []Param{
	{Name: "includedTags[]"},
	{Name: "excludedTags[]"},
	{Name: "order[followedCount]"},
	{Name: "limit"},
	{Name: "offset", Default: "0"},
}}

func query(t *testing.T, raw string) url.Values {
	t.Helper()
	v, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return v
}

func TestQuery_declarationOrder(t *testing.T) {
	got := mangaList.Query(query(t, "offset=20&limit=10&includedTags[]=a&includedTags[]=b"))
	assert.Equal(t, "includedTags%5B%5D=a&includedTags%5B%5D=b&limit=10&offset=20", got)
}

func TestQuery_defaultEqualsOmitted(t *testing.T) {
	explicit := mangaList.Query(query(t, "limit=10&offset=0"))
	omitted := mangaList.Query(query(t, "limit=10"))
	empty := mangaList.Query(query(t, "limit=10&offset="))

	assert.Equal(t, explicit, omitted)
	assert.Equal(t, explicit, empty)
}

func TestQuery_everySignificantParamDistinguishes(t *testing.T) {
	base := "includedTags[]=a&excludedTags[]=b&order[followedCount]=desc&limit=10&offset=0"
	variants := []string{
		"includedTags[]=z&excludedTags[]=b&order[followedCount]=desc&limit=10&offset=0",
		"includedTags[]=a&excludedTags[]=z&order[followedCount]=desc&limit=10&offset=0",
		"includedTags[]=a&excludedTags[]=b&order[followedCount]=asc&limit=10&offset=0",
		"includedTags[]=a&excludedTags[]=b&order[followedCount]=desc&limit=20&offset=0",
		"includedTags[]=a&excludedTags[]=b&order[followedCount]=desc&limit=10&offset=10",
	}
	want := mangaList.Query(query(t, base))
	for _, v := range variants {
		assert.NotEqual(t, want, mangaList.Query(query(t, v)), v)
	}
}

func TestQuery_noLossyConcatenation(t *testing.T) {
	b := Builder{Params: []Param{{Name: "a"}, {Name: "b"}}}

	first := b.Query(url.Values{"a": {"1&b=2"}})
	second := b.Query(url.Values{"a": {"1"}, "b": {"2"}})
	assert.NotEqual(t, first, second)

	joined := b.Query(url.Values{"a": {"x,y"}})
	split := b.Query(url.Values{"a": {"x", "y"}})
	assert.NotEqual(t, joined, split)
}

func TestQuery_repeatedValuesKeepRequestOrder(t *testing.T) {
	ab := mangaList.Query(query(t, "includedTags[]=a&includedTags[]=b"))
	ba := mangaList.Query(query(t, "includedTags[]=b&includedTags[]=a"))
	assert.NotEqual(t, ab, ba)
}

func TestQuery_undeclaredParams(t *testing.T) {
	in := query(t, "zeta=1&title=x&alpha=2")

	assert.Equal(t, "", Builder{}.Query(in), "undeclared params are dropped by default")

	b := Builder{Params: []Param{{Name: "title"}}, ForwardAll: true}
	assert.Equal(t, "title=x&alpha=2&zeta=1", b.Query(in))
	assert.Equal(t, b.Query(in), b.Query(query(t, "alpha=2&title=x&zeta=1")))
}

func TestKey_resolvedURL(t *testing.T) {
	target, err := url.Parse("https://uploads.example.org/covers/abc123/cover.jpg")
	require.NoError(t, err)

	assert.Equal(t, "https://uploads.example.org/covers/abc123/cover.jpg", Key(target))
}

func TestKey_sameCallSameKey(t *testing.T) {
	build := func(raw string) string {
		u, err := url.Parse("https://API.example.org/manga")
		require.NoError(t, err)
		u.RawQuery = mangaList.Query(query(t, raw))
		return Key(u)
	}

	assert.Equal(t, build("limit=10"), build("offset=0&limit=10"))
	assert.NotEqual(t, build("limit=10"), build("limit=10&offset=10"))
	assert.Equal(t, "https://api.example.org/manga?limit=10&offset=0", build("limit=10"))
}

func TestKey_pathsDistinguish(t *testing.T) {
	a, _ := url.Parse("https://uploads.example.org/covers/abc/1.jpg")
	b, _ := url.Parse("https://uploads.example.org/data/abc/1.jpg")
	assert.NotEqual(t, Key(a), Key(b))
}
