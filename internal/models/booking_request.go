package models

type PassengerRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Age             int    `json:"age" validate:"required,min=1,max=120"`
	Gender          string `json:"gender" validate:"required,oneof=male female other"`
	BerthPreference string `json:"berthPreference,omitempty" validate:"omitempty,oneof=lower upper middle none"`
	IsWithChild     bool   `json:"isWithChild"`
}

type BookingRequest struct {
	TrainID    int64              `json:"trainId" validate:"required,gt=0"`
	Passengers []PassengerRequest `json:"passengers" validate:"required,min=1,max=6,dive"`
}

type CancelResponse struct {
	Message string `json:"message"`
}
