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
	"github.com/gin-gonic/gin"

	"github.com/midaslabs/midas"
	"github.com/midaslabs/midas/api/middleware"
	"github.com/midaslabs/midas/config"
)

type Api struct {
	midas  *midas.Midas
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router

	router.POST("/accounts", a.CreateAccount)
	router.GET("/accounts/:id", a.GetAccount)
	router.GET("/accounts", a.GetAllAccounts)
	router.DELETE("/accounts/:id", a.DeleteAccount)

	router.POST("/operations", a.CreateOperation)
	router.GET("/operations/:id", a.GetOperation)
	router.GET("/operations", a.GetAllOperations)
	router.GET("/operations/reference/:reference", a.GetOperationByReference)
	router.POST("/operations/:id/verify", a.VerifyOperation)
	router.POST("/operations/:id/approve", a.ApproveOperation)
	router.POST("/operations/:id/reject", a.RejectOperation)
	router.POST("/operations/:id/complete", a.CompleteOperation)
	router.POST("/operations/:id/cancel", a.CancelOperation)
	router.PUT("/operations/:id/status", a.UpdateOperationStatus)

	router.GET("/history/:owner_id", a.GetHistory)

	return a.router
}

func NewAPI(m *midas.Midas) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})

	return &Api{midas: m, router: r}
}
