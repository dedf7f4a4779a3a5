package zones

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	zs, err := Defaults()
	require.NoError(t, err)
	require.Len(t, zs, 2)

	tgs, tgh := zs[0], zs[1]
	assert.Equal(t, "Tower Grove South", tgs.Name)
	assert.Equal(t, "TowerGroveSouthCalls", tgs.Store)
	assert.Equal(t, "InTowerGroveSouth", tgs.FlagColumn)
	assert.Equal(t, "TOWER GROVE SOUTH", tgs.LiteralPhrase)

	assert.Equal(t, "Tower Grove Heights", tgh.Name)
	assert.Equal(t, "TowerGroveHeightsCalls", tgh.Store)
	assert.Empty(t, tgh.LiteralPhrase)
}

func TestDefaults_Membership(t *testing.T) {
	zs, err := Defaults()
	require.NoError(t, err)
	tgs, tgh := zs[0], zs[1]

	tests := []struct {
		address string
		inTGS   bool
		inTGH   bool
	}{
		{"3700 GRAND BLVD", true, true},
		{"3500 ARSENAL ST", true, false},
		{"3900 HARTFORD ST", true, true},
		{"5200 CHIPPEWA ST", false, false},
		{"3600 UTAH ST", false, true},
		{"MORGANFORD RD / ARSENAL ST", true, true},
		{"1200 WASHINGTON AV", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.inTGS, domain.Classify(tt.address, tgs), "tower grove south")
			assert.Equal(t, tt.inTGH, domain.Classify(tt.address, tgh), "tower grove heights")
		})
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	zs, err := Load("")
	require.NoError(t, err)
	assert.Len(t, zs, 2)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	doc := `zones:
  - name: Shaw
    store: ShawCalls
    streets:
      - token: shaw
      - token: tower grove
        kind: Boundary
        range: {low: 3900, high: 4300}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	zs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, zs, 1)
	assert.Equal(t, []domain.Street{
		{Token: "SHAW", Kind: domain.Interior},
		{Token: "TOWER GROVE", Kind: domain.Boundary, Range: &domain.BlockRange{Low: 3900, High: 4300}},
	}, zs[0].Streets)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read zones file")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty document", "", "decode"},
		{"no zones", "zones: []\n", "no zones defined"},
		{"unknown key", "zones:\n  - name: A\n    store: S\n    strets: []\n", "decode"},
		{"invalid zone", "zones:\n  - name: A\n    literal_phrase: X\n", "store is required"},
		{
			"shared store",
			"zones:\n  - {name: A, store: S, literal_phrase: X}\n  - {name: B, store: S, literal_phrase: Y}\n",
			`share store "S"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMarshalRoundTripsDefaults(t *testing.T) {
	zs, err := Defaults()
	require.NoError(t, err)

	b, err := Marshal(zs)
	require.NoError(t, err)

	again, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, zs, again)
}
