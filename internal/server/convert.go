package server

import "salience/internal/store"

func fromUser(user *store.User) User {
	return User{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.Name,
		Role:            string(user.Role),
		ExpertiseLevel:  user.ExpertiseLevel,
		YearsExperience: user.YearsExperience,
		TrainingDate:    user.TrainingDate,
		Institution:     user.Institution,
		Specializations: user.Specializations,
		IsActive:        user.IsActive,
		CreatedAt:       formatTime(user.CreatedAt),
	}
}

func fromUsers(users []*store.User) []User {
	out := make([]User, 0, len(users))
	for _, user := range users {
		out = append(out, fromUser(user))
	}
	return out
}

func fromSample(sample *store.Sample) Sample {
	return Sample{
		ID:              sample.ID,
		DrugName:        sample.DrugName,
		DrugNameDisplay: sample.DrugNameDisplay,
		CardID:          sample.CardID,
		Filename:        sample.Filename,
		ImagePath:       sample.ImagePath,
		Quantity:        sample.Quantity,
		ImageType:       sample.ImageType,
	}
}

func fromSamples(samples []*store.Sample) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, sample := range samples {
		out = append(out, fromSample(sample))
	}
	return out
}

func fromExperiment(exp *store.Experiment) Experiment {
	return Experiment{
		ID:           exp.ID,
		Name:         exp.Name,
		Description:  exp.Description,
		Instructions: exp.Instructions,
		Status:       string(exp.Status),
		CreatedBy:    exp.CreatedBy,
		CreatedAt:    formatTime(exp.CreatedAt),
		UpdatedAt:    formatTime(exp.UpdatedAt),
	}
}

func fromExperiments(exps []*store.Experiment) []Experiment {
	out := make([]Experiment, 0, len(exps))
	for _, exp := range exps {
		out = append(out, fromExperiment(exp))
	}
	return out
}

func fromExperimentSamples(entries []*store.ExperimentSample) []ExperimentSample {
	out := make([]ExperimentSample, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ExperimentSample{
			ID:           entry.ID,
			DisplayOrder: entry.DisplayOrder,
			Sample:       fromSample(&entry.Sample),
		})
	}
	return out
}

func fromAssignment(assignment *store.Assignment) Assignment {
	return Assignment{
		ID:                assignment.ID,
		ExperimentID:      assignment.ExperimentID,
		SpecialistID:      assignment.SpecialistID,
		Status:            string(assignment.Status),
		RandomizationSeed: assignment.RandomizationSeed,
		StartedAt:         formatOptionalTime(assignment.StartedAt),
		CreatedAt:         formatTime(assignment.CreatedAt),
		ExperimentName:    assignment.ExperimentName,
		ExperimentStatus:  string(assignment.ExperimentStatus),
		SpecialistName:    assignment.SpecialistName,
		SpecialistEmail:   assignment.SpecialistEmail,
	}
}

func fromAssignments(assignments []*store.Assignment) []Assignment {
	out := make([]Assignment, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, fromAssignment(assignment))
	}
	return out
}

func fromAssignmentProgress(progress *store.AssignmentProgress) AssignmentProgress {
	return AssignmentProgress{
		Total:      progress.Total,
		Completed:  progress.Completed,
		Remaining:  progress.Remaining,
		Percentage: progress.Percentage,
	}
}

func fromExperimentProgress(progress *store.ExperimentProgress) ExperimentProgress {
	out := ExperimentProgress{
		Specialists:          make([]SpecialistProgress, 0, len(progress.Specialists)),
		TotalAnnotations:     progress.TotalAnnotations,
		CompletedAnnotations: progress.CompletedAnnotations,
		OverallPercentage:    progress.OverallPercentage,
	}
	for _, entry := range progress.Specialists {
		out.Specialists = append(out.Specialists, SpecialistProgress{
			AssignmentID:     entry.AssignmentID,
			SpecialistName:   entry.SpecialistName,
			Status:           string(entry.Status),
			StartedAt:        formatOptionalTime(entry.StartedAt),
			TotalSamples:     entry.TotalSamples,
			CompletedSamples: entry.CompletedSamples,
			Percentage:       entry.Percentage,
		})
	}
	return out
}
