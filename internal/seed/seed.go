// Package seed generates the demo members and books loaded on first run.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"

	"lms/internal/id"
	"lms/internal/library"
	"lms/internal/models"
)

const (
	DefaultStudents = 15
	DefaultBooks    = 20

	firstStudentNumber = 2024000
)

var (
	firstNames = []string{"Wei", "Fang", "Na", "Min", "Jing", "Xiuying", "Li", "Qiang", "Lei", "Yang", "Yong", "Jun", "Jie", "Tao", "Chao", "Ming", "Gang", "Ping"}
	lastNames  = []string{"Li", "Wang", "Zhang", "Liu", "Chen", "Yang", "Zhao", "Huang", "Zhou", "Wu", "Xu", "Sun", "Hu", "Zhu", "Gao", "Lin", "He", "Guo"}

	titles = []string{
		"Dream of the Red Chamber", "To Live", "The Three-Body Problem", "Fortress Besieged",
		"One Hundred Years of Solitude", "Ordinary World", "Harry Potter and the Philosopher's Stone",
		"The Miracles of the Namiya General Store", "The Kite Runner", "Sapiens",
		"Journey to the West", "Romance of the Three Kingdoms", "Water Margin", "Call to Arms",
		"White Deer Plain",
	}
	authors = []string{
		"Cao Xueqin", "Yu Hua", "Liu Cixin", "Qian Zhongshu",
		"Gabriel García Márquez", "Lu Yao", "J.K. Rowling",
		"Keigo Higashino", "Khaled Hosseini", "Yuval Noah Harari",
		"Wu Cheng'en", "Luo Guanzhong", "Shi Nai'an", "Lu Xun",
		"Chen Zhongshi",
	}
	categories = []string{"Fiction", "Science Fiction", "History", "Science", "Literature"}
)

// Seeder builds demo data with a fixed shape and random content.
type Seeder struct {
	Students int
	Books    int
	IDs      id.Generator
	Rand     *rand.Rand
}

// New returns a Seeder with the default sizes and a randomly seeded source.
func New(ids id.Generator) *Seeder {
	return &Seeder{
		Students: DefaultStudents,
		Books:    DefaultBooks,
		IDs:      ids,
		Rand:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Generate returns one admin followed by the students, and the books.
func (s *Seeder) Generate() ([]models.Member, []models.Book) {
	members := make([]models.Member, 0, s.Students+1)
	members = append(members, models.Member{
		ID:        s.IDs.NewID(),
		StudentID: "ADMIN001",
		Name:      "System Administrator",
		Email:     "admin@lms.edu",
		Role:      models.RoleAdmin,
	})

	for i := 0; i < s.Students; i++ {
		number := firstStudentNumber + i
		members = append(members, models.Member{
			ID:        s.IDs.NewID(),
			StudentID: fmt.Sprintf("STU%d", number),
			Name:      pick(s.Rand, firstNames) + " " + pick(s.Rand, lastNames),
			Email:     fmt.Sprintf("stu%d@student.lms.edu", number),
			Role:      models.RoleStudent,
		})
	}

	books := make([]models.Book, 0, s.Books)
	for i := 0; i < s.Books; i++ {
		title := titles[i%len(titles)]
		if i >= len(titles) {
			title += " (Hardcover)"
		}
		total := s.Rand.IntN(10) + 2
		books = append(books, models.Book{
			ID:              s.IDs.NewID(),
			Title:           title,
			Author:          authors[i%len(authors)],
			ISBN:            fmt.Sprintf("978-7-%d", s.Rand.IntN(1_000_000_000)),
			TotalCopies:     total,
			AvailableCopies: total,
			CoverURL:        models.CoverImages[i%len(models.CoverImages)],
			Category:        pick(s.Rand, categories),
		})
	}

	return members, books
}

// Run seeds lib if its member store is empty and reports whether it did.
func (s *Seeder) Run(ctx context.Context, lib *library.Library) (bool, error) {
	return lib.SeedIfEmpty(ctx, s.Generate)
}

func pick(r *rand.Rand, items []string) string {
	return items[r.IntN(len(items))]
}
