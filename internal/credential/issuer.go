package credential

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"raceday/internal/model"
	"raceday/internal/repository"
	"raceday/internal/storage"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	ErrNotEligible = errors.New("participant is not eligible for a credential")
	ErrNotFound    = errors.New("participant not found")
)

const (
	payloadPrefix = "raceday:credential:v1"
	qrSize        = 512
	urlTTL        = 7 * 24 * time.Hour
)

// Issuer renders and persists check-in credentials. Issuance only ever happens
// for participants whose registration is approved and payment verified; it is
// idempotent, so retries and concurrent callers converge on a single credential.
type Issuer struct {
	logger  *slog.Logger
	repo    repository.Repository
	storage storage.ObjectStorage
	secret  []byte
}

func NewIssuer(logger *slog.Logger, repo repository.Repository, objectStorage storage.ObjectStorage, secret string) *Issuer {
	return &Issuer{
		logger:  logger,
		repo:    repo,
		storage: objectStorage,
		secret:  []byte(secret),
	}
}

type Credential struct {
	Payload string `json:"payload"`
	URL     string `json:"url"`
}

// Issue creates the credential for a participant, or returns the existing one.
// The participant row and the stored QR image are written together; a storage
// failure leaves the participant without any credential state.
func (i *Issuer) Issue(ctx context.Context, participantID uuid.UUID) (Credential, error) {
	participant, err := i.repo.GetParticipantByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("failed to load participant: %w", err)
	}
	return i.issue(ctx, participant)
}

// IssueFor is Issue for callers that already hold the participant row.
func (i *Issuer) IssueFor(ctx context.Context, participant model.Participant) (Credential, error) {
	return i.issue(ctx, participant)
}

func (i *Issuer) issue(ctx context.Context, participant model.Participant) (Credential, error) {
	if participant.QRCodeData != nil && participant.QRCodeURL != nil {
		return Credential{Payload: *participant.QRCodeData, URL: *participant.QRCodeURL}, nil
	}

	if participant.RegistrationStatus != model.RegistrationApproved || participant.PaymentStatus != model.PaymentVerified {
		return Credential{}, ErrNotEligible
	}

	payload := i.Payload(participant.ID)

	png, err := qrcode.Encode(payload, qrcode.Medium, qrSize)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to render QR code: %w", err)
	}

	key := objectKey(participant.ID)
	if err := i.storage.Store(ctx, key, bytes.NewReader(png), "image/png"); err != nil {
		return Credential{}, fmt.Errorf("failed to store QR code: %w", err)
	}

	url, err := i.storage.URL(ctx, key, urlTTL)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to presign QR code URL: %w", err)
	}

	if err := i.repo.SetParticipantCredential(ctx, participant.ID, payload, url); err != nil {
		if errors.Is(err, repository.ErrCredentialExists) {
			// Another caller won the race; hand back what they wrote.
			existing, readErr := i.repo.GetParticipantByID(ctx, participant.ID)
			if readErr != nil {
				return Credential{}, fmt.Errorf("failed to reload participant: %w", readErr)
			}
			if existing.QRCodeData != nil && existing.QRCodeURL != nil {
				return Credential{Payload: *existing.QRCodeData, URL: *existing.QRCodeURL}, nil
			}
		}
		return Credential{}, fmt.Errorf("failed to record credential: %w", err)
	}

	i.logger.Info("Credential issued", "participant_id", participant.ID)
	return Credential{Payload: payload, URL: url}, nil
}

// Payload builds the scannable credential text. The payload is deterministic
// per participant and carries an HMAC so scanners can verify it offline.
func (i *Issuer) Payload(participantID uuid.UUID) string {
	base := fmt.Sprintf("%s:%s", payloadPrefix, participantID)
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(base))
	return fmt.Sprintf("%s:%s", base, hex.EncodeToString(mac.Sum(nil)))
}

// VerifyPayload checks a scanned payload's signature and returns the
// participant it names.
func (i *Issuer) VerifyPayload(payload string) (uuid.UUID, bool) {
	rest, ok := strings.CutPrefix(payload, payloadPrefix+":")
	if !ok || len(rest) < 37 {
		return uuid.Nil, false
	}

	idPart := rest[:36]
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, false
	}

	if !hmac.Equal([]byte(payload), []byte(i.Payload(id))) {
		return uuid.Nil, false
	}
	return id, true
}

// Image streams the stored QR PNG for a participant.
func (i *Issuer) Image(ctx context.Context, participantID uuid.UUID) ([]byte, error) {
	body, err := i.storage.Retrieve(ctx, objectKey(participantID))
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve QR code: %w", err)
	}
	defer body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return nil, fmt.Errorf("failed to read QR code: %w", err)
	}
	return buf.Bytes(), nil
}

func objectKey(participantID uuid.UUID) string {
	return fmt.Sprintf("credentials/%s.png", participantID)
}
