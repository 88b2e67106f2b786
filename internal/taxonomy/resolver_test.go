package taxonomy

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcdb-labs/disaster-etl/internal/domain"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(NewTable(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolveClusterCode(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  string
	}{
		{
			name:  "single undrr 2025 code",
			codes: []string{"MH0035"},
			want:  "nat-cli-dro-dro",
		},
		{
			name:  "undrr code carried in both 2025 and 2020 indexes",
			codes: []string{"MH0007"},
			want:  "nat-hyd-flo-riv",
		},
		{
			name:  "emdat cluster code votes for itself",
			codes: []string{"nat-hyd-flo-fla"},
			want:  "nat-hyd-flo-fla",
		},
		{
			name:  "lone glide code takes the scheme default sub-type",
			codes: []string{"FL"},
			want:  "nat-hyd-flo-flo",
		},
		{
			name:  "glide code disambiguated by co-occurring 2025 key",
			codes: []string{"FL", "MH0007"},
			want:  "nat-hyd-flo-riv",
		},
		{
			name:  "glide code disambiguated by co-occurring emdat key",
			codes: []string{"LS", "nat-hyd-mmw-lan"},
			want:  "nat-hyd-mmw-lan",
		},
		{
			name:  "majority wins across mixed schemes",
			codes: []string{"MH0007", "FL", "MH0035"},
			want:  "nat-hyd-flo-riv",
		},
		{
			name:  "tie breaks by first occurrence not alphabetically",
			codes: []string{"MH0035", "AV"},
			want:  "nat-cli-dro-dro",
		},
		{
			name:  "tie winner precedes the alphabetically smaller cluster",
			codes: []string{"MH0050", "MH0035"},
			want:  "nat-geo-ava-ava",
		},
		{
			name:  "unknown codes are skipped when a known one remains",
			codes: []string{"BOGUS", "MH0050"},
			want:  "nat-geo-ava-ava",
		},
	}

	resolver := newTestResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.ResolveClusterCode(tt.codes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveClusterCodeIsDeterministic(t *testing.T) {
	resolver := newTestResolver(t)
	codes := []string{"MH0030", "TC", "MH0034"}

	first, err := resolver.ResolveClusterCode(codes)
	require.NoError(t, err)
	for range 50 {
		got, err := resolver.ResolveClusterCode(codes)
		require.NoError(t, err)
		require.Equal(t, first, got)
	}
}

func TestResolveClusterCodeErrors(t *testing.T) {
	resolver := newTestResolver(t)

	t.Run("empty code list", func(t *testing.T) {
		_, err := resolver.ResolveClusterCode(nil)
		var target *domain.NoHazardCodesError
		require.ErrorAs(t, err, &target)
	})

	t.Run("nothing matches", func(t *testing.T) {
		_, err := resolver.ResolveClusterCode([]string{"BOGUS", "ALSO-BOGUS"})
		var target *domain.NoClusterMatchError
		require.ErrorAs(t, err, &target)
		assert.Equal(t, []string{"BOGUS", "ALSO-BOGUS"}, target.Codes)
	})
}

func TestGlideRowWithoutClusterKeyVotesLastCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.csv")
	data := "undrr_2025_key,undrr_key,glide_code,emdat_key,label,cluster_label,family_label\n" +
		"ZZ0001,,ZZ,,Unmapped hazard,Unmapped,Test\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	resolver := NewResolver(NewTableFromPath(path), slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := resolver.ResolveClusterCode([]string{"ZZ", "TAIL-CODE"})
	require.NoError(t, err)
	assert.Equal(t, "TAIL-CODE", got)
}

func TestCanonicalCodes(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  []string
	}{
		{
			name:  "already canonical round-trips unchanged",
			codes: []string{"MH0600", "FL"},
			want:  []string{"MH0600", "FL"},
		},
		{
			name:  "glide only derives the 2025 key",
			codes: []string{"FL"},
			want:  []string{"MH0600", "FL"},
		},
		{
			name:  "lone 2025 key needs no derivation",
			codes: []string{"MH0007"},
			want:  []string{"MH0007"},
		},
		{
			name:  "emdat cluster code derives the 2025 key",
			codes: []string{"nat-geo-ava-ava"},
			want:  []string{"MH0050", "nat-geo-ava-ava"},
		},
		{
			name:  "all three schemes present",
			codes: []string{"nat-cli-dro-dro", "DR", "MH0035"},
			want:  []string{"MH0035", "DR", "nat-cli-dro-dro"},
		},
		{
			name:  "unknown codes drop out",
			codes: []string{"BOGUS", "EQ"},
			want:  []string{"GH0001", "EQ"},
		},
	}

	resolver := newTestResolver(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.CanonicalCodes(tt.codes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalCodesDerivesFrom2020Key(t *testing.T) {
	// The embedded dataset reuses 2025 keys as 2020 keys, so a divergent pair
	// needs its own dataset to exercise the legacy-key derivation.
	path := filepath.Join(t.TempDir(), "profiles.csv")
	data := "undrr_2025_key,undrr_key,glide_code,emdat_key,label,cluster_label,family_label\n" +
		"ZZ9901,ZZ0001,,zzz-aaa-bbb-ccc,Renumbered hazard,Renumbered,Test\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	resolver := NewResolver(NewTableFromPath(path), slog.New(slog.NewTextHandler(io.Discard, nil)))

	got, err := resolver.CanonicalCodes([]string{"ZZ0001"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZ9901"}, got, "a legacy 2020 key must derive its 2025 replacement")
}

func TestCanonicalCodesEmptyInput(t *testing.T) {
	resolver := newTestResolver(t)
	_, err := resolver.CanonicalCodes(nil)
	var target *domain.NoHazardCodesError
	require.ErrorAs(t, err, &target)
}

func TestKeywords(t *testing.T) {
	resolver := newTestResolver(t)

	t.Run("labels are collected sorted and deduplicated", func(t *testing.T) {
		got := resolver.Keywords([]string{"MH0007", "MH0006"})
		assert.Equal(t, []string{"Flash flood", "Flood", "Hydrological", "Riverine flood"}, got)
	})

	t.Run("unknown codes contribute nothing", func(t *testing.T) {
		got := resolver.Keywords([]string{"BOGUS"})
		assert.Empty(t, got)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, resolver.Keywords(nil))
	})
}
