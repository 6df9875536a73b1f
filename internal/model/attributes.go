package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Attributes holds free-form food attributes (brand, source, image URL...) stored as a JSON object
type Attributes map[string]string

// Value implements the driver.Valuer interface
func (a Attributes) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (a *Attributes) Scan(value interface{}) error {
	if value == nil {
		*a = Attributes{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Attributes", value)
	}
	if len(bytes) == 0 {
		*a = Attributes{}
		return nil
	}

	m := map[string]string{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*a = m
	return nil
}
