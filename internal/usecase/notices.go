package usecase

import (
	"errors"

	"github.com/iamvkosarev/notechat/config"
	"github.com/iamvkosarev/notechat/internal/model"
	"github.com/iamvkosarev/notechat/pkg/local"
)

var (
	NoticeMissingCredential = local.NewSet(
		"OpenAI API key is not set. Add it in settings or OPENAI_API_KEY.",
		local.NewTrans(local.Rus, "Не задан ключ OpenAI API. Укажите его в настройках или в OPENAI_API_KEY."),
	)
	NoticeRateLimited = local.NewSet(
		"Rate limit exceeded. Please try again later.",
		local.NewTrans(local.Rus, "Превышен лимит запросов. Попробуйте позже."),
	)
	NoticeRemoteAPI = local.NewSet(
		"API Error: %s",
		local.NewTrans(local.Rus, "Ошибка API: %s"),
	)
	NoticeUnsupportedFileType = local.NewSet(
		"Unsupported file type",
		local.NewTrans(local.Rus, "Неподдерживаемый тип файла"),
	)
	NoticeFileTooLarge = local.NewSet(
		"File size exceeds limit",
		local.NewTrans(local.Rus, "Размер файла превышает лимит"),
	)
	NoticeIO = local.NewSet(
		"Failed to access vault files: %s",
		local.NewTrans(local.Rus, "Не удалось обратиться к файлам хранилища: %s"),
	)
	NoticeConversationNotFound = local.NewSet(
		"Conversation not found",
		local.NewTrans(local.Rus, "Беседа не найдена"),
	)
	NoticeMessageNotFound = local.NewSet(
		"Message not found",
		local.NewTrans(local.Rus, "Сообщение не найдено"),
	)
	NoticeNoActiveConversation = local.NewSet(
		"No active conversation",
		local.NewTrans(local.Rus, "Нет активной беседы"),
	)
	NoticeNothingToExport = local.NewSet(
		"No messages to export",
		local.NewTrans(local.Rus, "Нет сообщений для экспорта"),
	)
	NoticeEmptyQuery = local.NewSet(
		"Please enter a message",
		local.NewTrans(local.Rus, "Введите сообщение"),
	)
	NoticeSendDebounced = local.NewSet(
		"Please wait before sending another message",
		local.NewTrans(local.Rus, "Подождите перед отправкой следующего сообщения"),
	)
	NoticeInvalidSetting = local.NewSet(
		"Invalid setting: %s",
		local.NewTrans(local.Rus, "Неверная настройка: %s"),
	)
	NoticeServerError = local.NewSet(
		"Something went wrong: %s",
		local.NewTrans(local.Rus, "Что-то пошло не так: %s"),
	)

	NoticeExported = local.NewSet(
		"Conversation exported to %s",
		local.NewTrans(local.Rus, "Беседа экспортирована в %s"),
	)
	NoticeFileProcessed = local.NewSet(
		"File %s processed successfully",
		local.NewTrans(local.Rus, "Файл %s успешно обработан"),
	)
	NoticeHistoryCleared = local.NewSet(
		"Chat history cleared",
		local.NewTrans(local.Rus, "История чата очищена"),
	)
	NoticeContextTrimmed = local.NewSet(
		MessageContextTrimmed,
		local.NewTrans(local.Rus, "Контекст был сокращён"),
	)
	NoticeTokensUsed = local.NewSet(
		"AI Tokens: %d",
		local.NewTrans(local.Rus, "Токены ИИ: %d"),
	)
)

// Notice turns err into a short message for the user.
func Notice(err error, language local.Language) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, model.ErrMissingCredential):
		return NoticeMissingCredential.Text(language)
	case errors.Is(err, model.ErrRateLimited):
		return NoticeRateLimited.Text(language)
	case errors.Is(err, model.ErrRemoteAPI):
		return NoticeRemoteAPI.Format(language, err.Error())
	case errors.Is(err, model.ErrUnsupportedFileType):
		return NoticeUnsupportedFileType.Text(language)
	case errors.Is(err, model.ErrFileTooLarge):
		return NoticeFileTooLarge.Text(language)
	case errors.Is(err, model.ErrIO):
		return NoticeIO.Format(language, err.Error())
	case errors.Is(err, model.ErrConversationNotFound):
		return NoticeConversationNotFound.Text(language)
	case errors.Is(err, model.ErrMessageNotFound):
		return NoticeMessageNotFound.Text(language)
	case errors.Is(err, model.ErrNoActiveConversation):
		return NoticeNoActiveConversation.Text(language)
	case errors.Is(err, model.ErrNothingToExport):
		return NoticeNothingToExport.Text(language)
	case errors.Is(err, model.ErrEmptyQuery):
		return NoticeEmptyQuery.Text(language)
	case errors.Is(err, model.ErrSendDebounced):
		return NoticeSendDebounced.Text(language)
	case errors.Is(err, config.ErrUnknownSetting):
		return NoticeInvalidSetting.Format(language, err.Error())
	default:
		return NoticeServerError.Format(language, err.Error())
	}
}
