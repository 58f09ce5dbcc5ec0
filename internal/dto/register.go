package dto

type RegisterDeviceRequest struct {
	UserID            string `json:"userId"`
	Role              string `json:"role"`
	DeviceID          string `json:"deviceId,omitempty"`
	IdentityPublicKey string `json:"identityPublicKey"`
	SignedPreKey      string `json:"signedPreKey"`
}

type RegisterDeviceResponse struct {
	UserID      string `json:"userId"`
	DeviceID    string `json:"deviceId"`
	DeviceSetID string `json:"deviceSetId"`
}

type DeviceKeys struct {
	DeviceID          string `json:"deviceId"`
	IdentityPublicKey string `json:"identityPublicKey"`
	SignedPreKey      string `json:"signedPreKey"`
}

type DeviceListResponse struct {
	UserID  string       `json:"userId"`
	Devices []DeviceKeys `json:"devices"`
}
