package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/iamvkosarev/notechat/internal/model"
)

const (
	MessageFileProcessed = "File processed successfully"

	fileKindText  = "text"
	fileKindCode  = "code"
	fileKindPDF   = "pdf"
	fileKindWord  = "word"
	fileKindImage = "image"
)

var fileKinds = map[string]string{
	".txt":  fileKindText,
	".md":   fileKindText,
	".csv":  fileKindText,
	".json": fileKindText,
	".html": fileKindText,
	".css":  fileKindText,
	".pdf":  fileKindPDF,
	".doc":  fileKindWord,
	".docx": fileKindWord,
	".png":  fileKindImage,
	".jpg":  fileKindImage,
	".jpeg": fileKindImage,
	".gif":  fileKindImage,
	".webp": fileKindImage,
}

var codeLanguages = map[string]string{
	".go":   "go",
	".js":   "javascript",
	".ts":   "typescript",
	".py":   "python",
	".java": "java",
	".rs":   "rust",
	".c":    "c",
	".cpp":  "cpp",
	".sh":   "bash",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".sql":  "sql",
}

// Upload is a file offered by the user. Open is only called once the file
// has passed validation.
type Upload struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// UploadFromPath describes a local file as an Upload.
func UploadFromPath(p string) (Upload, error) {
	info, err := os.Stat(p)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: failed to stat %s: %w", model.ErrIO, p, err)
	}
	if !info.Mode().IsRegular() {
		return Upload{}, fmt.Errorf("%w: %s is not a regular file", model.ErrIO, p)
	}
	return Upload{
		Name: filepath.Base(p),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(p)
		},
	}, nil
}

type FileProcessingResult struct {
	Success  bool
	Message  string
	FilePath string
	Content  string
}

type VaultWriter interface {
	WriteFile(ctx context.Context, rel string, data []byte) error
}

type FileUsecaseDeps struct {
	Vault    VaultWriter
	Settings SettingsProvider
}

type FileUsecase struct {
	FileUsecaseDeps
	uploadsDir string
}

func NewFileUsecase(deps FileUsecaseDeps, uploadsDir string) *FileUsecase {
	return &FileUsecase{
		FileUsecaseDeps: deps,
		uploadsDir:      uploadsDir,
	}
}

// Validate checks the extension allowlist and the size limit without
// touching the file contents.
func (f *FileUsecase) Validate(upload Upload) error {
	settings := f.Settings.Settings()
	ext := strings.ToLower(path.Ext(upload.Name))
	if ext == "" || !slices.ContainsFunc(settings.SupportedFileTypes, func(t string) bool {
		return strings.EqualFold(t, ext)
	}) {
		return fmt.Errorf("%w: %s", model.ErrUnsupportedFileType, upload.Name)
	}
	if _, ok := handlerFor(ext); !ok {
		return fmt.Errorf("%w: no handler for %s", model.ErrUnsupportedFileType, ext)
	}
	if upload.Size > settings.FileUploadLimitBytes() {
		return fmt.Errorf("%w: %d bytes > %d MB", model.ErrFileTooLarge, upload.Size, settings.FileUploadLimitMB)
	}
	return nil
}

// Process validates the upload, extracts its content and stores the uploaded
// bytes under the uploads dir of the vault, replacing an earlier upload of
// the same name.
func (f *FileUsecase) Process(ctx context.Context, upload Upload) (FileProcessingResult, error) {
	if err := f.Validate(upload); err != nil {
		return FileProcessingResult{Message: model.ErrorCode(err)}, err
	}
	data, err := readUpload(upload)
	if err != nil {
		return FileProcessingResult{Message: model.CodeIO}, err
	}
	if int64(len(data)) > f.Settings.Settings().FileUploadLimitBytes() {
		return FileProcessingResult{Message: model.CodeFileTooLarge}, fmt.Errorf("%w: %s", model.ErrFileTooLarge, upload.Name)
	}

	name := filepath.Base(upload.Name)
	content := extract(name, data)
	filePath := path.Join(filepath.ToSlash(f.uploadsDir), name)
	if err = f.Vault.WriteFile(ctx, filePath, data); err != nil {
		return FileProcessingResult{Message: model.CodeIO}, fmt.Errorf("failed to save upload: %w", err)
	}
	return FileProcessingResult{
		Success:  true,
		Message:  MessageFileProcessed,
		FilePath: filePath,
		Content:  content,
	}, nil
}

func readUpload(upload Upload) ([]byte, error) {
	if upload.Open == nil {
		return nil, fmt.Errorf("%w: upload %s cannot be opened", model.ErrIO, upload.Name)
	}
	r, err := upload.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", model.ErrIO, upload.Name, err)
	}
	defer func() {
		_ = r.Close()
	}()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", model.ErrIO, upload.Name, err)
	}
	return data, nil
}

func handlerFor(ext string) (string, bool) {
	if kind, ok := fileKinds[ext]; ok {
		return kind, true
	}
	if _, ok := codeLanguages[ext]; ok {
		return fileKindCode, true
	}
	return "", false
}

func extract(name string, data []byte) string {
	ext := strings.ToLower(path.Ext(name))
	kind, _ := handlerFor(ext)
	switch kind {
	case fileKindText:
		return strings.ToValidUTF8(string(data), "�")
	case fileKindCode:
		return fmt.Sprintf("```%s\n%s\n```", codeLanguages[ext], strings.ToValidUTF8(string(data), "�"))
	case fileKindPDF:
		return fmt.Sprintf("[PDF Content from %s]", name)
	case fileKindWord:
		return fmt.Sprintf("[Word Document Content from %s]", name)
	case fileKindImage:
		return fmt.Sprintf("[Image Content from %s]", name)
	default:
		return ""
	}
}
