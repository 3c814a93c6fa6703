package topic

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/aegis-sign/connect/pkg/apierrors"
)

// verdict 是对一次 relay body 的判定结果。
type verdict int

const (
	verdictPending verdict = iota
	verdictResolved
	verdictRejected
)

// evaluateMessage 解析 {"message": {...}}：error 优先于 name，其余字段忽略。
// 空串、null、false、0 形式的 error 视为不存在。
func evaluateMessage(name string, body []byte) (verdict, Payload, error) {
	if !gjson.ValidBytes(body) {
		return verdictRejected, Payload{}, ErrInvalidRelayResponse
	}
	msg := gjson.GetBytes(body, "message")
	if !msg.IsObject() {
		return verdictPending, Payload{}, nil
	}
	var errVal, nameVal gjson.Result
	msg.ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "error":
			errVal = value
		case name:
			nameVal = value
		}
		return true
	})
	if errorSet(errVal) {
		return verdictRejected, Payload{}, apierrors.Remote(remoteMessage(errVal))
	}
	if nameVal.Exists() {
		return verdictResolved, PayloadFromJSON(json.RawMessage(nameVal.Raw)), nil
	}
	return verdictPending, Payload{}, nil
}

func errorSet(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	default:
		return v.Exists()
	}
}

func remoteMessage(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	if m := v.Get("message"); m.Exists() {
		return m.String()
	}
	return v.Raw
}
