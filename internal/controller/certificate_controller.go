package controller

import (
	"errors"

	"course_market_backend/internal/service"
	"course_market_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certService}
}

// ListCertificates godoc
// @Summary 我的证书
// @Tags 证书
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/certificates [get]
func (c *CertificateController) ListCertificates(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	certs, err := c.CertificateService.ListForUser(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// GetCourseCertificate godoc
// @Summary 指定课程的证书
// @Tags 证书
// @Produce  json
// @Security BearerAuth
// @Param   courseId path string true "课程ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 404 {object} util.Response "证书未签发"
// @Router /api/certificates/courses/{courseId} [get]
func (c *CertificateController) GetCourseCertificate(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	cert, err := c.CertificateService.GetForCourse(ctx.Request.Context(), claims.UserID, ctx.Param("courseId"))
	if err != nil {
		if errors.Is(err, util.ErrCertificateMissing) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, cert)
}

// VerifyCertificate godoc
// @Summary 证书公开核验
// @Description 按验证码核验证书，无需登录。核验失败返回 valid=false 而非 404
// @Tags 证书
// @Produce  json
// @Param   code path string true "验证码"
// @Success 200 {object} util.Response{data=service.VerificationResult}
// @Router /api/certificates/verify/{code} [get]
func (c *CertificateController) VerifyCertificate(ctx *gin.Context) {
	result, err := c.CertificateService.Verify(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
