package logger

import (
	"go.uber.org/zap"

	"github.com/troikatech/call-center/pkg/utils"
)

// MaskPhone creates a zap field that masks phone numbers
func MaskPhone(key, phone string) zap.Field {
	return zap.String(key, utils.MaskPhoneNumber(phone))
}

// CallFields returns the fields identifying a call in logs.
func CallFields(callID, phone string) []zap.Field {
	return []zap.Field{zap.String("call_id", callID), MaskPhone("phone_number", phone)}
}
