package postgres

import (
	"context"
	"errors"

	"github.com/quizforge/quiz-engine/internal/models"
	"github.com/quizforge/quiz-engine/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, record *models.AttemptRecord) error {
	return a.db.WithContext(ctx).Create(record).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.AttemptRecord, error) {
	var record models.AttemptRecord
	if err := a.db.WithContext(ctx).First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (a *AttemptPostgreSQL) GetByQuizAndStudent(ctx context.Context, quizID, studentID string) ([]*models.AttemptRecord, error) {
	var records []*models.AttemptRecord
	err := a.db.WithContext(ctx).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Order("submitted_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *AttemptPostgreSQL) CountByQuizAndStudent(ctx context.Context, quizID, studentID string) (int, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.AttemptRecord{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.AttemptRecord, int64, error) {
	var records []*models.AttemptRecord
	var total int64

	query := a.db.WithContext(ctx).Model(&models.AttemptRecord{})
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("submitted_at DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (a *AttemptPostgreSQL) GetStats(ctx context.Context, quizID string) (*repositories.AttemptStats, error) {
	stats := &repositories.AttemptStats{}

	base := a.db.WithContext(ctx).Model(&models.AttemptRecord{}).Where("quiz_id = ?", quizID)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalAttempts).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Distinct("student_id").Count(&stats.UniqueStudents).Error; err != nil {
		return nil, err
	}
	if stats.TotalAttempts == 0 {
		return stats, nil
	}

	row := struct {
		AvgScore float64
		Passed   int64
	}{}
	err := base.Session(&gorm.Session{}).
		Select("AVG(percentage) AS avg_score, COUNT(*) FILTER (WHERE passed) AS passed").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	stats.AverageScore = row.AvgScore
	stats.PassRate = float64(row.Passed) / float64(stats.TotalAttempts)

	return stats, nil
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.QuizID != nil {
		query = query.Where("quiz_id = ?", *filters.QuizID)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.Passed != nil {
		query = query.Where("passed = ?", *filters.Passed)
	}
	return query
}
