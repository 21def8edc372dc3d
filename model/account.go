/*
Copyright 2025 Midas Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import "time"

// Account holds a customer balance in integer minor units. The balance column
// is only ever written by the ledger datasource methods; everything else reads.
type Account struct {
	ID        int64                  `json:"-"`
	AccountID string                 `json:"account_id"`
	OwnerID   string                 `json:"owner_id"`
	Balance   int64                  `json:"balance"`
	Currency  string                 `json:"currency"`
	Active    bool                   `json:"active"`
	CreatedAt time.Time              `json:"created_at"`
	DeletedAt *time.Time             `json:"deleted_at,omitempty"`
	MetaData  map[string]interface{} `json:"meta_data,omitempty"`
}

type AccountFilter struct {
	OwnerID  string    `json:"owner_id"`
	Currency string    `json:"currency"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}
