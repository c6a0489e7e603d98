package nostd

import (
	"fmt"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zhTranslations "github.com/go-playground/validator/v10/translations/zh"
)

// CustomValidator echo请求参数校验器，错误信息翻译为中文
type CustomValidator struct {
	Validator  *validator.Validate
	translator ut.Translator
}

// TransInit 初始化中文翻译器
func (cv *CustomValidator) TransInit() error {
	zhLocale := zh.New()
	uni := ut.New(zhLocale, zhLocale)

	translator, found := uni.GetTranslator("zh")
	if !found {
		return fmt.Errorf("translator zh not found")
	}

	if err := zhTranslations.RegisterDefaultTranslations(cv.Validator, translator); err != nil {
		return fmt.Errorf("failed to register translations: %w", err)
	}

	cv.translator = translator
	return nil
}

func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.Validator.Struct(i)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || cv.translator == nil {
		return err
	}

	for _, fieldError := range validationErrors {
		return fmt.Errorf("%s", fieldError.Translate(cv.translator))
	}
	return err
}
