// Package metadata validates metadata intents and authenticates their
// signatures. Format checks run before any cryptography; signatures are
// verified over the canonical (NFC-normalized, BLAKE2b-hashed) byte
// encoding of the text so equivalent Unicode spellings authenticate
// identically.
package metadata

import (
	"strings"
	"unicode/utf8"

	"github.com/causeway-service/causeway_service/internal/domain/entities"
	domainerrors "github.com/causeway-service/causeway_service/internal/domain/errors"
	"github.com/causeway-service/causeway_service/internal/domain/rules"
	"github.com/causeway-service/causeway_service/pkg/crypto"
	"github.com/causeway-service/causeway_service/pkg/logger"
	"github.com/causeway-service/causeway_service/pkg/metrics"
)

// attributeArity is the exact field count a bracketed attribute list
// must carry: role and username.
const attributeArity = 2

// Service validates and authenticates metadata submissions
type Service struct {
	marker string
	logger *logger.Logger
}

// NewService creates a new metadata service. An empty marker falls back
// to the default.
func NewService(marker string, logger *logger.Logger) *Service {
	if marker == "" {
		marker = entities.DefaultMetadataMarker
	}
	return &Service{marker: marker, logger: logger}
}

// ValidateFormat checks the structural rules: the text must contain the
// marker substring (case-sensitive), the asset name must fit the length
// bound counted in runes, and any embedded attribute list must parse
// cleanly.
func (s *Service) ValidateFormat(meta *entities.Metadata) error {
	return rules.Sequence(
		func() error {
			return rules.Check(strings.Contains(meta.Text, s.marker), domainerrors.ErrMetadataFormat)
		},
		func() error {
			return rules.Check(utf8.RuneCountInString(meta.AssetName) <= entities.MaxAssetNameLength,
				domainerrors.ErrAssetNameTooLong)
		},
		func() error {
			_, err := ParseAttributes(meta.Text)
			return err
		},
	)
}

// ParseAttributes extracts the optional bracketed attribute list from
// the text, e.g. "[minter, alice]", and binds it to a typed record.
// Text without a list returns nil with no error. A present list must
// carry exactly two non-empty fields; anything else fails with a
// format error and no partial record is ever returned.
func ParseAttributes(text string) (*entities.MetadataAttributes, error) {
	open := strings.IndexByte(text, '[')
	if open < 0 {
		return nil, nil
	}
	length := strings.IndexByte(text[open+1:], ']')
	if length < 0 {
		return nil, domainerrors.NewDomainError(domainerrors.ErrMetadataFormat,
			"METADATA_FORMAT_INVALID", "unterminated attribute list")
	}

	fields := strings.Split(text[open+1:open+1+length], ",")
	if len(fields) != attributeArity {
		return nil, domainerrors.NewDomainError(domainerrors.ErrMetadataFormat,
			"METADATA_FORMAT_INVALID", "attribute list must have exactly 2 fields").
			WithDetails(map[string]interface{}{"fields": len(fields)})
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] == "" {
			return nil, domainerrors.NewDomainError(domainerrors.ErrMetadataFormat,
				"METADATA_FORMAT_INVALID", "attribute list fields must be non-empty")
		}
	}

	return &entities.MetadataAttributes{Role: fields[0], Username: fields[1]}, nil
}

// Authenticate validates the format and then verifies the ed25519
// signature over the canonical digest of the text. Format failures
// surface before signature failures.
func (s *Service) Authenticate(signed *entities.SignedMetadata) (*entities.MetadataResponse, error) {
	digest := crypto.CanonicalDigest(signed.Text)

	err := rules.Sequence(
		func() error { return s.ValidateFormat(&signed.Metadata) },
		func() error {
			return rules.Check(crypto.VerifySignature(signed.PublicKey, digest, signed.Signature),
				domainerrors.ErrSignatureInvalid)
		},
	)

	resp, err := rules.Map(signed, err, func(sm *entities.SignedMetadata) *entities.MetadataResponse {
		attrs, _ := ParseAttributes(sm.Text) // already validated above
		return &entities.MetadataResponse{
			AssetName:     sm.AssetName,
			CanonicalHash: crypto.DigestHex(crypto.CanonicalBytes(sm.Text)),
			Authenticated: true,
			Attributes:    attrs,
		}
	})
	if err != nil {
		s.logger.Warn("Metadata authentication failed",
			"error", err,
			"asset_name", signed.AssetName)
		metrics.RecordValidationFailure("metadata", domainerrors.GetErrorCode(err))
		metrics.RecordIntent("metadata", "rejected")
		return nil, err
	}

	metrics.RecordIntent("metadata", "accepted")
	return resp, nil
}

// Marker exposes the effective marker after any default fallback.
func (s *Service) Marker() string {
	return s.marker
}
