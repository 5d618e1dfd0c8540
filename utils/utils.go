package utils

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
)

// DecodeReq decodes a json request body into an interface
func DecodeReq(r *http.Request, model interface{}) error {
	defer r.Body.Close()
	b, _ := ioutil.ReadAll(r.Body)
	err := json.Unmarshal(b, model)
	r.Body = ioutil.NopCloser(bytes.NewBuffer(b))
	if err != nil {
		return err
	}
	return err
}
