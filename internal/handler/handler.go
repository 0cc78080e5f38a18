package handler

import (
	"errors"
	"net/http"
	"strconv"

	"fnordcredit/internal/service"
	"fnordcredit/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService *service.AccountService
	creditService  *service.CreditService
	logger         zerolog.Logger
}

// NewHandler 创建处理器实例
func NewHandler(account *service.AccountService, credit *service.CreditService, logger zerolog.Logger) *Handler {
	return &Handler{
		accountService: account,
		creditService:  credit,
		logger:         logger,
	}
}

// fail 把服务层错误映射为 HTTP 响应
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case service.IsNotFound(err):
		response.Error(c, http.StatusNotFound, response.CodeUserNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateName):
		response.Error(c, http.StatusConflict, response.CodeDuplicateName, err.Error())
	case errors.Is(err, service.ErrEmptyName):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyName, err.Error())
	case errors.Is(err, service.ErrSameName):
		response.Error(c, http.StatusBadRequest, response.CodeSameName, err.Error())
	case errors.Is(err, service.ErrNonZeroBalance):
		response.Error(c, http.StatusBadRequest, response.CodeNonZeroBalance, err.Error())
	case errors.Is(err, service.ErrWrongPin):
		response.Error(c, http.StatusBadRequest, response.CodeWrongPin, err.Error())
	case service.IsBusy(err):
		response.Error(c, http.StatusTooManyRequests, response.CodeSystemBusy, "系统繁忙，请稍后重试")
	default:
		h.logger.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("请求处理失败")
		response.ServerError(c, "服务器内部错误")
	}
}

func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "用户 id 参数错误")
		return 0, false
	}
	return id, true
}

// ============================================================
// 用户相关接口
// ============================================================

// ListUsers 用户列表
// GET /api/v1/users
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.accountService.GetAllUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, users)
}

type NameRequest struct {
	Name string `json:"name"`
}

// AddUser 创建用户
// POST /api/v1/users
func (h *Handler) AddUser(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.accountService.AddUser(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user.Summary())
}

// GetUser 查询单个用户
// GET /api/v1/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	user, err := h.accountService.GetUser(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user.Summary())
}

// GetUserByToken 按会话 token 查询用户
// GET /api/v1/tokens/:token/user
func (h *Handler) GetUserByToken(c *gin.Context) {
	user, err := h.accountService.GetUserByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user.Summary())
}

// RenameUser 修改用户名
// PUT /api/v1/users/:id/name
func (h *Handler) RenameUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.accountService.RenameUser(c.Request.Context(), id, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user.Summary())
}

// DeleteUser 删除用户，余额不为 0 时需要 force=true
// DELETE /api/v1/users/:id?force=true
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	if err := h.accountService.DeleteUser(c.Request.Context(), id, force); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "用户已删除"})
}

type TokenRequest struct {
	Token string `json:"token"`
}

// UpdateToken 设置会话 token，空字符串清除
// PUT /api/v1/users/:id/token
func (h *Handler) UpdateToken(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.UpdateToken(c.Request.Context(), id, req.Token); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "token 已更新"})
}

type PinRequest struct {
	Pin string `json:"pin"`
}

// UpdatePin 设置 PIN，空字符串清除
// PUT /api/v1/users/:id/pin
func (h *Handler) UpdatePin(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.UpdatePin(c.Request.Context(), id, req.Pin); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "PIN 已更新"})
}

// CheckPin 校验 PIN
// POST /api/v1/users/:id/pin/check
func (h *Handler) CheckPin(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.CheckUserPin(c.Request.Context(), id, req.Pin); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"valid": true})
}

type AvatarRequest struct {
	Avatar string `json:"avatar"`
}

// UpdateAvatar 设置头像地址
// PUT /api/v1/users/:id/avatar
func (h *Handler) UpdateAvatar(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req AvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.accountService.UpdateAvatar(c.Request.Context(), id, req.Avatar)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user.Summary())
}

// ============================================================
// 余额相关接口
// ============================================================

// CreditRequest delta 既可以是 JSON 数字也可以是字符串
type CreditRequest struct {
	Delta       *decimal.Decimal `json:"delta" binding:"required"`
	Description string           `json:"description"`
}

// UpdateCredit 调整余额
// POST /api/v1/users/:id/credit
func (h *Handler) UpdateCredit(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.creditService.UpdateCredit(c.Request.Context(), id, *req.Delta, req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, user.Summary())
}

// GetTransactions 用户流水
// GET /api/v1/users/:id/transactions
func (h *Handler) GetTransactions(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	transactions, err := h.creditService.GetUserTransactions(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, transactions)
}

// ExportQIF 以 QIF 文本导出用户流水
// GET /api/v1/users/:id/transactions/qif
func (h *Handler) ExportQIF(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	qif, err := h.creditService.ExportTransactionsQIF(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\"transactions-"+strconv.FormatInt(id, 10)+".qif\"")
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(qif))
}
