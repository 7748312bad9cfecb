package preview

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"enablehub/internal/domain"
	"enablehub/internal/service/s3"

	"github.com/h2non/bimg"
	"github.com/jmoiron/sqlx"
	"github.com/xfrr/goffmpeg/transcoder"
)

func init() {
	dirs := []string{
		"/tmp/previews",
		"/tmp/.config",
		"/tmp/.cache",
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0777); err != nil {
			log.Printf("Warning: failed to create directory %s: %v", dir, err)
		}
		if err := os.Chmod(dir, 0777); err != nil {
			log.Printf("Warning: failed to chmod directory %s: %v", dir, err)
		}
	}
}

const (
	maxImageSize = 1024            // максимальный размер превью в пикселях
	jpegQuality  = 85              // качество JPEG
	tmpDir       = "/tmp/previews" // директория для временных файлов
)

type Service struct {
	s3Client s3.Storage
	db       *sqlx.DB
}

// NewService создает новый сервис для работы с превью версий
func NewService(s3Client s3.Storage, db *sqlx.DB) *Service {
	return &Service{
		s3Client: s3Client,
		db:       db,
	}
}

// StartCleanupTask запускает периодическую очистку старых превью
func (s *Service) StartCleanupTask() {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		for range ticker.C {
			s.cleanupOldPreviews(context.Background())
		}
	}()
}

// cleanupOldPreviews удаляет превью старше 30 дней из S3 и базы данных
func (s *Service) cleanupOldPreviews(ctx context.Context) {
	log.Printf("[Preview] Starting preview cleanup task")

	var previewsToDelete []struct {
		S3Key string `db:"s3_key"`
	}

	query := `
        DELETE FROM version_previews
        WHERE created_at < NOW() - INTERVAL '30 days'
        RETURNING s3_key
    `

	err := s.db.SelectContext(ctx, &previewsToDelete, query)
	if err != nil {
		log.Printf("[Preview] Error cleaning up old previews from database: %v", err)
		return
	}

	for _, preview := range previewsToDelete {
		if err := s.s3Client.DeleteObject(preview.S3Key); err != nil {
			log.Printf("[Preview] Error deleting preview from S3: %v", err)
		}
	}

	log.Printf("[Preview] Completed preview cleanup task. Removed %d old previews", len(previewsToDelete))
}

// GetOrGeneratePreview получает или генерирует превью для версии ассета
func (s *Service) GetOrGeneratePreview(ctx context.Context, version *domain.AssetVersion) ([]byte, error) {
	log.Printf("[Preview] Preview requested for version %s (type: %s)", version.ID, version.MIMEType)

	previewKey := fmt.Sprintf("content_assets/%s/previews/%s_v%d",
		version.AssetID, version.ID, version.VersionNumber)

	// Пытаемся получить существующее превью
	preview, err := s.s3Client.GetObject(ctx, previewKey)
	if err == nil {
		defer preview.Close()
		return io.ReadAll(preview)
	}

	log.Printf("[Preview] No cached preview for version %s, generating", version.ID)

	source, err := s.s3Client.GetObject(ctx, version.S3Key)
	if err != nil {
		return nil, fmt.Errorf("failed to get version content: %w", err)
	}
	defer source.Close()

	sourceData, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read version content: %w", err)
	}

	// Генерируем превью в зависимости от типа содержимого
	var previewData []byte
	switch version.MIMEType {
	case "application/pdf":
		previewData, err = s.generatePDFPreview(sourceData)
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		previewData, err = s.optimizeImage(sourceData)
	case "video/mp4", "video/webm", "video/x-matroska":
		previewData, err = s.generateVideoPreview(sourceData)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", version.MIMEType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to generate preview: %w", err)
	}

	if err := s.s3Client.UploadBytes(previewKey, previewData); err != nil {
		log.Printf("[Preview] Warning: failed to save preview to S3: %v", err)
	} else {
		s.recordPreview(ctx, version, previewKey)
	}

	return previewData, nil
}

func (s *Service) recordPreview(ctx context.Context, version *domain.AssetVersion, s3Key string) {
	query := `
        INSERT INTO version_previews (version_id, s3_key)
        VALUES ($1, $2)
        ON CONFLICT (version_id) DO UPDATE SET s3_key = EXCLUDED.s3_key, created_at = CURRENT_TIMESTAMP
    `
	if _, err := s.db.ExecContext(ctx, query, version.ID, s3Key); err != nil {
		log.Printf("[Preview] Warning: failed to record preview for version %s: %v", version.ID, err)
	}
}

// generatePDFPreview генерирует превью для PDF
func (s *Service) generatePDFPreview(data []byte) ([]byte, error) {
	tmpPath := filepath.Join(tmpDir, fmt.Sprintf("preview_%d", time.Now().UnixNano()))
	if err := os.MkdirAll(tmpPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpPath)

	pdfPath := filepath.Join(tmpPath, "input.pdf")
	if err := os.WriteFile(pdfPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write PDF file: %w", err)
	}

	// Конвертируем первую страницу в изображение
	outputPath := filepath.Join(tmpPath, "output")
	cmd := exec.Command("pdftoppm",
		"-jpeg",
		"-f", "1",
		"-l", "1",
		"-scale-to", fmt.Sprintf("%d", maxImageSize),
		"-singlefile",
		pdfPath,
		outputPath,
	)

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("failed to convert PDF: %w", err)
	}

	imgData, err := os.ReadFile(outputPath + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to read converted image: %w", err)
	}

	return s.optimizeImage(imgData)
}

// optimizeImage оптимизирует изображение до нужного размера
func (s *Service) optimizeImage(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, maxImageSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: jpegQuality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// calculateNewDimensions вычисляет новые размеры с сохранением пропорций
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}

// generateVideoPreview извлекает кадр видео и оптимизирует его
func (s *Service) generateVideoPreview(data []byte) ([]byte, error) {
	tmpPath := filepath.Join(tmpDir, fmt.Sprintf("preview_%d", time.Now().UnixNano()))
	if err := os.MkdirAll(tmpPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpPath)

	videoPath := filepath.Join(tmpPath, "input.mp4")
	if err := os.WriteFile(videoPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to save video data: %w", err)
	}

	duration, err := getVideoDuration(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get video duration: %w", err)
	}

	previewTime := calculatePreviewTime(duration)
	outputPath := filepath.Join(tmpPath, "output.jpg")

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(videoPath, outputPath); err != nil {
		return nil, fmt.Errorf("failed to initialize transcoder: %w", err)
	}

	trans.MediaFile().SetSeekTime(previewTime)
	trans.MediaFile().SetVframes(1)
	trans.MediaFile().SetQScale(2)
	trans.MediaFile().SetOutputFormat("image2")

	done := trans.Run(false)
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to extract frame: %w", err)
	}

	imgData, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame image: %w", err)
	}

	return s.optimizeImage(imgData)
}

// getVideoDuration получает длительность видео
func getVideoDuration(videoPath string) (string, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath)

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get duration: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// calculatePreviewTime вычисляет время для кадра превью
func calculatePreviewTime(duration string) string {
	durationFloat, err := strconv.ParseFloat(duration, 64)
	if err != nil {
		return "00:00:01"
	}

	if durationFloat <= 10 {
		return "00:00:01"
	}

	// Берем кадр на 10% от начала видео
	previewSeconds := durationFloat * 0.1
	hours := int(previewSeconds) / 3600
	minutes := (int(previewSeconds) % 3600) / 60
	seconds := int(previewSeconds) % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
