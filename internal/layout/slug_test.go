package layout

import (
	"testing"

	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/annel0/cavegen/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handBuiltLayout() *Layout {
	return &Layout{
		Sublevel: "SCx3",
		Seed:     0xABCD,
		Units: []PlacedUnit{
			{
				Name: "room_a", Rotation: 1, Pos: vec.V2(0, 0), Width: 2, Height: 2,
				Doors: []PlacedDoor{
					{Dir: sublevel.East, Anchor: vec.V2(2, 0), Link: &DoorRef{Unit: 1, Door: 0}},
					{Dir: sublevel.South, Anchor: vec.V2(1, 2)},
				},
			},
			{
				Name: "hall", Rotation: 0, Pos: vec.V2(2, -1), Width: 1, Height: 2,
				Doors: []PlacedDoor{
					{Dir: sublevel.West, Anchor: vec.V2(2, 0), Link: &DoorRef{Unit: 0, Door: 0}},
				},
			},
		},
		Entities: []Entity{
			{Kind: EntityStart, Name: "start", Pos: vec.V3[float32](170, 0, 85), Count: 1},
			{Kind: EntityEnemy, Name: "bulborb", Pos: vec.V3[float32](-12.5, 3, 0.1), Unit: 1, Count: 3},
		},
	}
}

func TestSlug_Format(t *testing.T) {
	l := handBuiltLayout()
	assert.Equal(t,
		"SCx3:0x0000ABCD|room_a/1@0,0[1.0,_];hall/0@2,-1[0.0]|start:start@170,85;enemy:bulborb@-12.5,0.1*3",
		l.Slug())
}

func TestSlug_OrderSensitive(t *testing.T) {
	a := handBuiltLayout()
	b := handBuiltLayout()
	b.Entities[0], b.Entities[1] = b.Entities[1], b.Entities[0]

	assert.NotEqual(t, a.Slug(), b.Slug())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestShareCode_Roundtrip(t *testing.T) {
	l := handBuiltLayout()

	code := l.ShareCode()
	assert.NotContains(t, code, "+")
	assert.NotContains(t, code, "/")

	slug, err := ParseShareCode(code)
	require.NoError(t, err)
	assert.Equal(t, l.Slug(), slug)

	name, seed, err := ParseSlugHeader(slug)
	require.NoError(t, err)
	assert.Equal(t, "SCx3", name)
	assert.Equal(t, uint32(0xABCD), seed)
}

func TestShareCode_Generated(t *testing.T) {
	spec := specA()
	for seed := uint32(0); seed < 50; seed++ {
		l, err := Generate(seed, spec)
		if err != nil {
			continue
		}
		slug, err := ParseShareCode(l.ShareCode())
		require.NoError(t, err)
		require.Equal(t, l.Slug(), slug)
	}
}

func TestShareCodec_Initialized(t *testing.T) {
	// кодеки создаются в init, пакет не должен жить с nil-кодеком
	require.NotNil(t, shareEncoder)
	require.NotNil(t, shareDecoder)

	raw, err := shareDecoder.DecodeAll(shareEncoder.EncodeAll([]byte("x:0x00000001||"), nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "x:0x00000001||", string(raw))
}

func TestParseShareCode_Invalid(t *testing.T) {
	_, err := ParseShareCode("не base64!")
	assert.Error(t, err)

	_, err = ParseShareCode("AAAA")
	assert.Error(t, err, "валидный base64, но не zstd")
}

func TestParseSlugHeader_Invalid(t *testing.T) {
	_, _, err := ParseSlugHeader("no-seed|x|y")
	assert.Error(t, err)

	_, _, err = ParseSlugHeader("name:0xZZ|x|")
	assert.Error(t, err)

	name, seed, err := ParseSlugHeader("a:b:0x00000010|x|")
	require.NoError(t, err)
	assert.Equal(t, "a:b", name)
	assert.Equal(t, uint32(16), seed)
}
