package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/listing-tracker/internal/listing"
)

func rec(source listing.Source, address string) listing.Record {
	return listing.Record{Source: source, Address: address, Images: []string{}}
}

func addresses(records []listing.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Address)
	}
	return out
}

func TestDeduplicatePriority(t *testing.T) {
	groups := []Group{
		{Source: "a", Records: []listing.Record{rec("a", "123 main st"), rec("a", "1 elm st")}},
		{Source: "b", Records: []listing.Record{rec("b", "123 main st"), rec("b", "9 oak ave")}},
	}

	res := Deduplicate(groups)

	require.Len(t, res.Groups, 2)
	assert.Equal(t, []string{"123 main st", "1 elm st"}, addresses(res.Groups[0].Records))
	assert.Equal(t, []string{"9 oak ave"}, addresses(res.Groups[1].Records))
	assert.Equal(t, listing.Source("a"), res.Groups[0].Records[0].Source)
	assert.Equal(t, 1, res.Duplicates["b"])
	assert.Zero(t, res.Duplicates["a"])
}

func TestDeduplicateWithinGroupKeepsFirst(t *testing.T) {
	first := rec("a", "5 first st")
	first.Price = 100
	second := rec("a", "5 first st")
	second.Price = 200

	res := Deduplicate([]Group{{Source: "a", Records: []listing.Record{first, second}}})

	require.Len(t, res.Groups[0].Records, 1)
	assert.Equal(t, int64(100), res.Groups[0].Records[0].Price)
	assert.Equal(t, 1, res.Duplicates["a"])
}

func TestDeduplicateSkipsMissingAddress(t *testing.T) {
	groups := []Group{
		{Source: "a", Records: []listing.Record{rec("a", ""), rec("a", "1 elm st")}},
		{Source: "c", Records: []listing.Record{rec("c", ""), rec("c", "")}},
	}

	res := Deduplicate(groups)

	assert.Equal(t, []string{"1 elm st"}, addresses(res.Groups[0].Records))
	assert.Empty(t, res.Groups[1].Records)
	assert.Equal(t, 1, res.Skipped["a"])
	assert.Equal(t, 2, res.Skipped["c"])
}

func TestDeduplicateIdempotent(t *testing.T) {
	groups := []Group{
		{Source: "a", Records: []listing.Record{rec("a", "x"), rec("a", "y"), rec("a", "x")}},
		{Source: "b", Records: []listing.Record{rec("b", "y"), rec("b", "z")}},
		{Source: "c", Records: []listing.Record{rec("c", "z"), rec("c", "w"), rec("c", "")}},
	}

	once := Deduplicate(groups)
	twice := Deduplicate(once.Groups)

	assert.Equal(t, once.Groups, twice.Groups)
	assert.Empty(t, twice.Duplicates)
	assert.Empty(t, twice.Skipped)
}

func TestDeduplicateDoesNotModifyInput(t *testing.T) {
	input := []listing.Record{rec("a", "x"), rec("a", "x")}
	groups := []Group{{Source: "a", Records: input}}

	res := Deduplicate(groups)
	res.Groups[0].Records[0].Address = "changed"

	assert.Len(t, groups[0].Records, 2)
	assert.Equal(t, "x", input[0].Address)
}

func TestFlatten(t *testing.T) {
	groups := []Group{
		{Source: "a", Records: []listing.Record{rec("a", "1")}},
		{Source: "b"},
		{Source: "c", Records: []listing.Record{rec("c", "2"), rec("c", "3")}},
	}
	assert.Equal(t, []string{"1", "2", "3"}, addresses(Flatten(groups)))
}
