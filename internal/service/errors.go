package service

import (
	"errors"
	"fmt"

	"fnordcredit/internal/infrastructure/lock"
	"fnordcredit/internal/repository"
)

// NotFound
var ErrUserNotFound = repository.ErrUserNotFound

// Validation
var (
	ErrEmptyName      = errors.New("请输入用户名")
	ErrDuplicateName  = repository.ErrDuplicateName
	ErrSameName       = errors.New("新用户名与当前用户名相同")
	ErrNonZeroBalance = errors.New("余额不为 0，无法删除用户")
	ErrWrongPin       = errors.New("PIN 错误")
)

// ErrSystemBusy 用户锁在重试次数内未能获取
var ErrSystemBusy = lock.ErrLockFailed

var validationErrors = []error{
	ErrEmptyName,
	ErrDuplicateName,
	ErrSameName,
	ErrNonZeroBalance,
	ErrWrongPin,
}

// PersistenceError 存储层读写失败
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s 失败: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsBusy(err error) bool {
	return errors.Is(err, ErrSystemBusy)
}

// classify 业务错误原样返回，其余包装为 PersistenceError
func classify(op string, err error) error {
	if err == nil || IsNotFound(err) || IsValidation(err) || IsBusy(err) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
