package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"ms-reservation/internal/models"

	"github.com/skip2/go-qrcode"
)

// Payload is what a conductor's scanner recovers from a ticket QR code.
type Payload struct {
	TicketID string          `json:"ticket_id"`
	PNR      string          `json:"pnr"`
	TrainID  int64           `json:"train_id"`
	Tier     models.Tier     `json:"tier"`
	Seats    []PassengerSeat `json:"seats"`
	IssuedAt time.Time       `json:"issued_at"`
}

type PassengerSeat struct {
	Name  string `json:"name"`
	Berth string `json:"berth,omitempty"`
}

type QRGenerator struct {
	secret []byte
	now    func() time.Time
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:], now: time.Now}
}

func NewPayload(ticket *models.Ticket, at time.Time) Payload {
	p := Payload{
		TicketID: ticket.ID,
		PNR:      ticket.PNR,
		TrainID:  ticket.TrainID,
		Tier:     ticket.Tier,
		IssuedAt: at.UTC(),
	}
	for _, passenger := range ticket.Passengers {
		seat := PassengerSeat{Name: passenger.Name}
		if passenger.Berth != nil {
			seat.Berth = passenger.Berth.Label()
		}
		p.Seats = append(p.Seats, seat)
	}
	return p
}

// GenerateEncryptedQR renders a 256px PNG whose content is the encrypted
// ticket payload.
func (q *QRGenerator) GenerateEncryptedQR(ticket *models.Ticket) ([]byte, error) {
	token, err := q.EncryptedToken(ticket)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, 256)
}

func (q *QRGenerator) EncryptedToken(ticket *models.Ticket) (string, error) {
	data, err := json.Marshal(NewPayload(ticket, q.now()))
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

func (q *QRGenerator) Decrypt(token string) (*Payload, error) {
	data, err := decryptAES(token, q.secret)
	if err != nil {
		return nil, err
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode qr payload: %w", err)
	}
	return &p, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(token string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode qr token: %w", err)
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("qr token too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(data, ciphertext[aes.BlockSize:])
	return data, nil
}
