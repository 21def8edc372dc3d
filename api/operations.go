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

	"github.com/gin-gonic/gin"

	model2 "github.com/midaslabs/midas/api/model"
	"github.com/midaslabs/midas/internal/apierror"
	"github.com/midaslabs/midas/model"
)

func (a Api) CreateOperation(c *gin.Context) {
	var newOperation model2.RecordOperation
	if err := c.ShouldBindJSON(&newOperation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := newOperation.ValidateRecordOperation(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.midas.CreateOperation(c.Request.Context(), newOperation.ToOperation())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetOperation(c *gin.Context) {
	op, err := a.midas.GetOperation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, op)
}

func (a Api) GetOperationByReference(c *gin.Context) {
	op, err := a.midas.GetOperationByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, op)
}

func (a Api) GetAllOperations(c *gin.Context) {
	limit, offset := paginationParams(c)
	operations, err := a.midas.GetAllOperations(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, operations)
}

func (a Api) VerifyOperation(c *gin.Context) {
	var body model2.VerifyOperation
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := body.ValidateVerifyOperation(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	op, err := a.midas.VerifyOperation(c.Request.Context(), c.Param("id"), model.VerificationStep(body.Step))
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, op)
}

func (a Api) ApproveOperation(c *gin.Context) {
	var body model2.ApproveOperation
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := body.ValidateApproveOperation(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	op, err := a.midas.ApproveOperation(c.Request.Context(), c.Param("id"), body.ApproverID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, op)
}

func (a Api) RejectOperation(c *gin.Context) {
	var body model2.RejectOperation
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := body.ValidateRejectOperation(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	op, err := a.midas.RejectOperation(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, op)
}

func (a Api) CompleteOperation(c *gin.Context) {
	op, err := a.midas.CompleteOperation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, op)
}

func (a Api) CancelOperation(c *gin.Context) {
	var body model2.RejectOperation
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := body.ValidateRejectOperation(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	op, err := a.midas.CancelOperation(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, op)
}

func (a Api) UpdateOperationStatus(c *gin.Context) {
	var body model2.UpdateOperationStatus
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := body.ValidateUpdateOperationStatus(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	op, err := a.midas.UpdateOperationStatus(c.Request.Context(), c.Param("id"), body.Status, body.Reason)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, op)
}
