package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/pkg/crypto"
	"github.com/causeway-service/causeway_service/pkg/logger"
)

func newTestService() *Service {
	return NewService("", logger.NewNop())
}

func TestValidateFormat(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name    string
		meta    entities.Metadata
		wantErr error
	}{
		{
			name: "marker present",
			meta: entities.Metadata{Text: "token drop: Valid Metadata v2", AssetName: "drop"},
		},
		{
			name: "marker exactly the text",
			meta: entities.Metadata{Text: "Valid Metadata", AssetName: "drop"},
		},
		{
			name:    "marker absent",
			meta:    entities.Metadata{Text: "no marker here", AssetName: "drop"},
			wantErr: domainerrors.ErrMetadataFormat,
		},
		{
			name: "lowercase marker does not count",
			// "Invalid Metadata" contains "valid Metadata" but not the
			// capital-V marker; it must fail.
			meta:    entities.Metadata{Text: "Invalid Metadata", AssetName: "drop"},
			wantErr: domainerrors.ErrMetadataFormat,
		},
		{
			name: "asset name at the bound",
			meta: entities.Metadata{Text: "Valid Metadata", AssetName: strings.Repeat("a", 32)},
		},
		{
			name:    "asset name over the bound",
			meta:    entities.Metadata{Text: "Valid Metadata", AssetName: strings.Repeat("a", 33)},
			wantErr: domainerrors.ErrAssetNameTooLong,
		},
		{
			name: "asset name length counts runes not bytes",
			// 32 multibyte runes are within the bound even though the
			// byte count is far higher.
			meta: entities.Metadata{Text: "Valid Metadata", AssetName: strings.Repeat("ü", 32)},
		},
		{
			name:    "marker failure reported before name failure",
			meta:    entities.Metadata{Text: "nope", AssetName: strings.Repeat("a", 40)},
			wantErr: domainerrors.ErrMetadataFormat,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateFormat(&tt.meta)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateFormatCustomMarker(t *testing.T) {
	svc := NewService("APPROVED", logger.NewNop())

	assert.NoError(t, svc.ValidateFormat(&entities.Metadata{Text: "status: APPROVED", AssetName: "x"}))
	assert.ErrorIs(t,
		svc.ValidateFormat(&entities.Metadata{Text: "Valid Metadata", AssetName: "x"}),
		domainerrors.ErrMetadataFormat)
}

func TestEmptyMarkerFallsBackToDefault(t *testing.T) {
	svc := NewService("", logger.NewNop())
	assert.Equal(t, entities.DefaultMetadataMarker, svc.Marker())
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService()

	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signedOver := func(text string) *entities.SignedMetadata {
		return &entities.SignedMetadata{
			Metadata:  entities.Metadata{Text: text, AssetName: "asset"},
			Signature: crypto.Sign(priv, crypto.CanonicalDigest(text)),
			PublicKey: pub,
		}
	}

	t.Run("valid signature authenticates", func(t *testing.T) {
		got, err := svc.Authenticate(signedOver("release notes: Valid Metadata"))
		require.NoError(t, err)
		assert.True(t, got.Authenticated)
		assert.Equal(t, "asset", got.AssetName)
		assert.NotEmpty(t, got.CanonicalHash)
	})

	t.Run("format failure wins over signature check", func(t *testing.T) {
		// Correctly signed but malformed text reports the format error.
		_, err := svc.Authenticate(signedOver("Invalid Metadata"))
		assert.ErrorIs(t, err, domainerrors.ErrMetadataFormat)
	})

	t.Run("signature over different text fails", func(t *testing.T) {
		sm := signedOver("original: Valid Metadata")
		sm.Text = "tampered: Valid Metadata"
		_, err := svc.Authenticate(sm)
		assert.ErrorIs(t, err, domainerrors.ErrSignatureInvalid)
	})

	t.Run("wrong key fails", func(t *testing.T) {
		otherPub, _, err := crypto.GenerateKeyPair()
		require.NoError(t, err)
		sm := signedOver("notes: Valid Metadata")
		sm.PublicKey = otherPub
		_, err = svc.Authenticate(sm)
		assert.ErrorIs(t, err, domainerrors.ErrSignatureInvalid)
	})

	t.Run("truncated key fails without panicking", func(t *testing.T) {
		sm := signedOver("notes: Valid Metadata")
		sm.PublicKey = sm.PublicKey[:5]
		_, err := svc.Authenticate(sm)
		assert.ErrorIs(t, err, domainerrors.ErrSignatureInvalid)
	})

	t.Run("unicode spellings authenticate interchangeably", func(t *testing.T) {
		composed := "café Valid Metadata"
		decomposed := "café Valid Metadata"
		require.NotEqual(t, composed, decomposed)

		// Sign the composed form, present the decomposed text.
		sm := &entities.SignedMetadata{
			Metadata:  entities.Metadata{Text: decomposed, AssetName: "asset"},
			Signature: crypto.Sign(priv, crypto.CanonicalDigest(composed)),
			PublicKey: pub,
		}
		got, err := svc.Authenticate(sm)
		require.NoError(t, err)
		assert.True(t, got.Authenticated)
	})
}

func TestParseAttributes(t *testing.T) {
	t.Run("two fields bind to a record", func(t *testing.T) {
		attrs, err := ParseAttributes("issued by [minter, alice] Valid Metadata")
		require.NoError(t, err)
		require.NotNil(t, attrs)
		assert.Equal(t, "minter", attrs.Role)
		assert.Equal(t, "alice", attrs.Username)
	})

	t.Run("no list means no record and no error", func(t *testing.T) {
		attrs, err := ParseAttributes("plain text, Valid Metadata")
		require.NoError(t, err)
		assert.Nil(t, attrs)
	})

	t.Run("wrong arity is a format error", func(t *testing.T) {
		for _, text := range []string{
			"[minter] Valid Metadata",
			"[minter, alice, extra] Valid Metadata",
		} {
			attrs, err := ParseAttributes(text)
			assert.ErrorIs(t, err, domainerrors.ErrMetadataFormat, text)
			assert.Nil(t, attrs, "no partial record on failure")
		}
	})

	t.Run("empty field is a format error", func(t *testing.T) {
		attrs, err := ParseAttributes("[minter, ] Valid Metadata")
		assert.ErrorIs(t, err, domainerrors.ErrMetadataFormat)
		assert.Nil(t, attrs)
	})

	t.Run("unterminated list is a format error", func(t *testing.T) {
		_, err := ParseAttributes("[minter, alice Valid Metadata")
		assert.ErrorIs(t, err, domainerrors.ErrMetadataFormat)
	})

	t.Run("surrounding whitespace is trimmed", func(t *testing.T) {
		attrs, err := ParseAttributes("[ admin ,  bob ] Valid Metadata")
		require.NoError(t, err)
		assert.Equal(t, "admin", attrs.Role)
		assert.Equal(t, "bob", attrs.Username)
	})
}

func TestValidateFormatRejectsMalformedAttributes(t *testing.T) {
	svc := newTestService()

	err := svc.ValidateFormat(&entities.Metadata{
		Text:      "Valid Metadata [onlyrole]",
		AssetName: "asset",
	})
	assert.ErrorIs(t, err, domainerrors.ErrMetadataFormat)

	// Marker failure still wins over the attribute failure.
	err = svc.ValidateFormat(&entities.Metadata{
		Text:      "no marker [onlyrole]",
		AssetName: "asset",
	})
	assert.ErrorIs(t, err, domainerrors.ErrMetadataFormat)
}

func TestAuthenticateCarriesAttributes(t *testing.T) {
	svc := newTestService()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	text := "minted via [minter, alice] Valid Metadata"
	sm := &entities.SignedMetadata{
		Metadata:  entities.Metadata{Text: text, AssetName: "asset"},
		Signature: crypto.Sign(priv, crypto.CanonicalDigest(text)),
		PublicKey: pub,
	}
	got, err := svc.Authenticate(sm)
	require.NoError(t, err)
	require.NotNil(t, got.Attributes)
	assert.Equal(t, "minter", got.Attributes.Role)
	assert.Equal(t, "alice", got.Attributes.Username)
}
