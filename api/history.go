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

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

// GetHistory returns an owner's transaction history, newest first. Optional
// query parameters: type, from, to (RFC 3339), limit, offset.
func (a Api) GetHistory(c *gin.Context) {
	filter := model.HistoryFilter{
		OperationType: model.OperationType(c.Query("type")),
	}
	filter.Limit, filter.Offset = paginationParams(c)

	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "please format 'from' as RFC 3339 (e.g., 2026-01-02T15:04:05Z)"})
			return
		}
		filter.From = t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "please format 'to' as RFC 3339 (e.g., 2026-01-02T15:04:05Z)"})
			return
		}
		filter.To = t
	}

	entries, err := a.midas.GetHistory(c.Request.Context(), c.Param("owner_id"), filter)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}
