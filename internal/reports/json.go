package reports

import "encoding/json"

// jsonValue holds a report payload in its encoded form so that shared
// singleflight results are decoded independently by every caller.
type jsonValue = json.RawMessage

func copyJSON(value, dest any) error {
	raw, ok := value.(jsonValue)
	if !ok {
		var err error
		raw, err = json.Marshal(value)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}
