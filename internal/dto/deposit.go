package dto

// DevicePayload is one pre-encrypted blob addressed to a single recipient
// device. The sender encrypted it client-side against that device's keys; the
// relay never inspects it.
type DevicePayload struct {
	DeviceID           string  `json:"deviceId"`
	Ciphertext         []byte  `json:"ciphertext"`
	SenderDeviceID     string  `json:"senderDeviceId"`
	SenderIdentityKey  string  `json:"senderIdentityKey"`
	SenderEphemeralKey *string `json:"senderEphemeralKey,omitempty"`
	ChainKey           *string `json:"chainKey,omitempty"`
}

type DepositRequest struct {
	TargetUserID string `json:"targetUserId"`
	// Optional idempotency key. Retrying a failed deposit with the same
	// depositId never creates duplicate entries.
	DepositID string          `json:"depositId,omitempty"`
	Payloads  []DevicePayload `json:"payloads"`
}

type DepositResponse struct {
	Delivered int  `json:"delivered"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type ContactDepositRequest struct {
	ProviderID string `json:"providerId"`
	Message    string `json:"message"`
}

type ContactDepositResponse struct {
	Delivered int `json:"delivered"`
}
