package settings

type PutSettingPayload struct {
	Value string `json:"value" validate:"max=10000"`
}
