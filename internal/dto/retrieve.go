package dto

import "time"

type MessageEnvelope struct {
	ID                 string    `json:"id"`
	Ciphertext         []byte    `json:"ciphertext"`
	SenderID           string    `json:"senderId"`
	SenderDeviceID     string    `json:"senderDeviceId"`
	SenderIdentityKey  string    `json:"senderIdentityKey"`
	SenderEphemeralKey *string   `json:"senderEphemeralKey,omitempty"`
	ChainKey           *string   `json:"chainKey,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

type DrainResponse struct {
	DeviceID string            `json:"deviceId"`
	Messages []MessageEnvelope `json:"messages"`
}

type ContactEnvelope struct {
	ID                 string    `json:"id"`
	SenderIDCiphertext []byte    `json:"senderIdCiphertext"`
	MessageCiphertext  []byte    `json:"messageCiphertext"`
	CreatedAt          time.Time `json:"createdAt"`
}

type ContactDrainResponse struct {
	DeviceID string            `json:"deviceId"`
	Requests []ContactEnvelope `json:"requests"`
}
