package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/tidebank/ledger-core/pkg"
	"go.uber.org/zap"
)

// IsEmpty checks if a string is empty.
func IsEmpty(s string) bool {
	return s == ""
}

func GetTraceID(c *gin.Context) (string, error) {
	traceID := c.GetString(pkg.TraceId)
	if IsEmpty(traceID) {
		return "", errors.New("trace id is empty")
	}
	return traceID, nil
}

// GetUserID reads the caller identity set by the upstream auth gateway.
// The core trusts it verbatim.
func GetUserID(c *gin.Context) (string, error) {
	userID := c.Request.Header.Get(pkg.HeaderUserId)
	if IsEmpty(userID) {
		return "", errors.New("user id header is empty")
	}
	return userID, nil
}

// ParseStructEnv binds env vars to struct fields using a mapstructure tag
func ParseStructEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if err := viper.BindEnv(tag); err != nil {
			return err
		}
	}
	return viper.Unmarshal(cfg)
}

// FormatConfigErrors logs each failed validation and returns a single error
// naming the offending fields.
func FormatConfigErrors(logger *zap.Logger, err error, cfg interface{}) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	fields := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		fields = append(fields, fe.Field())
		logger.Error("invalid config value",
			zap.String("field", fe.Field()),
			zap.String("rule", fe.Tag()),
		)
	}
	return errors.New("invalid configuration: " + strings.Join(fields, ", "))
}
