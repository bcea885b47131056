// Copyright 2025 The NLP Odyssey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package twilio

import "encoding/xml"

// TwiML documents returned by the voice webhook. Only the verbs this
// agent speaks are modeled: Gather (listen for speech, optionally saying
// something first), Say, and Hangup.

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Gather  *twimlGather `xml:",omitempty"`
	Say     *twimlSay    `xml:",omitempty"`
	Hangup  *twimlHangup `xml:",omitempty"`
}

type twimlGather struct {
	XMLName  xml.Name  `xml:"Gather"`
	Input    string    `xml:"input,attr"`
	Action   string    `xml:"action,attr"`
	Method   string    `xml:"method,attr"`
	Language string    `xml:"language,attr"`
	Timeout  int       `xml:"timeout,attr"`
	Say      *twimlSay `xml:",omitempty"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

func marshalTwiML(resp twimlResponse) ([]byte, error) {
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
