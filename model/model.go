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

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a suffix.
// This is useful for creating unique identifiers with context-specific prefixes,
// e.g. "op_b4b6...", "acc_91d2...", "hst_77aa...".
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// GenerateReference builds a human-readable reference number for an operation,
// prefixed by the operation type, e.g. "TWR-003928174650". References are only
// candidates until the database unique constraint accepts them; the creation
// path retries with a fresh suffix on conflict.
func GenerateReference(operationType OperationType) string {
	return fmt.Sprintf("%s-%012d", operationType.ReferencePrefix(), rand.Int63n(1_000_000_000_000))
}
