package graphql

const queryTeamIssues = `
query TeamIssues($teamId: String!, $after: String) {
  team(id: $teamId) {
    issues(first: 100, after: $after) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        id
        number
        title
        description
        state {
          id
          name
          type
        }
        creator {
          name
          displayName
        }
        labels {
          nodes {
            id
            name
          }
        }
        project {
          id
          name
        }
        createdAt
        updatedAt
        url
      }
    }
  }
}
`

const queryIssueByNumber = `
query IssueByNumber($teamId: ID!, $number: Float!) {
  issues(filter: { team: { id: { eq: $teamId } }, number: { eq: $number } }, first: 1) {
    nodes {
      id
      number
      title
      description
      state {
        id
        name
        type
      }
      creator {
        name
        displayName
      }
      labels {
        nodes {
          id
          name
        }
      }
      project {
        id
        name
      }
      createdAt
      updatedAt
      url
    }
  }
}
`

const queryTeamComments = `
query TeamComments($teamId: String!, $after: String) {
  team(id: $teamId) {
    issues(first: 50, after: $after) {
      pageInfo {
        hasNextPage
        endCursor
      }
      nodes {
        number
        comments(first: 100) {
          nodes {
            id
            body
            createdAt
            user {
              name
              displayName
            }
          }
        }
      }
    }
  }
}
`

const queryTeamProjects = `
query TeamProjects($teamId: String!) {
  team(id: $teamId) {
    projects(first: 100) {
      nodes {
        id
        name
        description
        state
        targetDate
        createdAt
        updatedAt
        url
        issues(first: 250) {
          nodes {
            state {
              type
            }
          }
        }
      }
    }
  }
}
`

const queryTeamStates = `
query TeamStates($teamId: String!) {
  team(id: $teamId) {
    states {
      nodes {
        id
        name
        type
      }
    }
  }
}
`

const queryTeamLabels = `
query TeamLabels($teamId: String!) {
  team(id: $teamId) {
    labels(first: 250) {
      nodes {
        id
        name
      }
    }
  }
}
`

const queryUserByName = `
query UserByName($name: String!) {
  users(filter: { or: [{ name: { eq: $name } }, { displayName: { eq: $name } }] }, first: 1) {
    nodes {
      id
      name
      displayName
    }
  }
}
`

const queryViewer = `
query Viewer {
  viewer {
    id
    name
    displayName
  }
}
`

const mutationIssueCreate = `
mutation IssueCreate($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue {
      id
      number
      title
      description
      state {
        id
        name
        type
      }
      creator {
        name
        displayName
      }
      labels {
        nodes {
          id
          name
        }
      }
      project {
        id
        name
      }
      createdAt
      updatedAt
      url
    }
  }
}
`

const mutationIssueUpdate = `
mutation IssueUpdate($id: String!, $input: IssueUpdateInput!) {
  issueUpdate(id: $id, input: $input) {
    success
  }
}
`

const mutationCommentCreate = `
mutation CommentCreate($input: CommentCreateInput!) {
  commentCreate(input: $input) {
    success
  }
}
`

const mutationProjectCreate = `
mutation ProjectCreate($input: ProjectCreateInput!) {
  projectCreate(input: $input) {
    success
    project {
      id
      name
      description
      state
      targetDate
      createdAt
      updatedAt
      url
    }
  }
}
`

const mutationProjectUpdate = `
mutation ProjectUpdate($id: String!, $input: ProjectUpdateInput!) {
  projectUpdate(id: $id, input: $input) {
    success
  }
}
`
