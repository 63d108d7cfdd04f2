package lock

type UnlockPayload struct {
	Passcode string `json:"passcode" validate:"required,max=200"`
}

type SetPasscodePayload struct {
	Current  string `json:"current,omitempty" validate:"max=200"`
	Passcode string `json:"passcode" validate:"max=200"`
}

type AutoLockPayload struct {
	Minutes int `json:"minutes" validate:"min=0,max=1440"`
}
