package playerok

// GraphQL documents for every operation the facade issues. Field selections
// are kept to what the decoders consume; the server tolerates narrower
// selections than the web client sends.

const queryViewer = `query viewer {
  viewer {
    id
    username
    email
    role
    hasFrozenBalance
    supportChatId
    systemChatId
    unreadChatsCounter
    isBlocked
    createdAt
    balance { id value frozen available withdrawable pendingIncome }
  }
}`

const queryUser = `query user($id: UUID, $username: String) {
  user(id: $id, username: $username) {
    id
    username
    email
    role
    isBlocked
    hasFrozenBalance
    supportChatId
    systemChatId
    createdAt
    balance { id value frozen available withdrawable pendingIncome }
  }
}`

const fragmentUser = `fragment ChatUser on UserFragment {
  id
  username
  role
  avatarURL
  isOnline
  isBlocked
  rating
  testimonialCounter
  createdAt
  supportChatId
  systemChatId
}`

const fragmentMessage = `fragment ChatMessageFields on ChatMessage {
  id
  text
  createdAt
  deletedAt
  isRead
  isSuspicious
  isBulkMessaging
  isAutoResponse
  event
  file { id url filename mime }
  user { ...ChatUser }
  deal {
    id
    direction
    status
    statusDescription
    hasProblem
    item { id name price }
    user { ...ChatUser }
  }
}`

const queryChats = `query chats($pagination: Pagination, $filter: ChatFilter) {
  chats(pagination: $pagination, filter: $filter) {
    edges {
      cursor
      node {
        id
        type
        status
        unreadMessagesCounter
        bookmarked
        lastMessage { ...ChatMessageFields }
        participants { ...ChatUser }
      }
    }
    pageInfo { startCursor endCursor hasPreviousPage hasNextPage }
    totalCount
  }
}
` + fragmentMessage + "\n" + fragmentUser

const queryChat = `query chat($id: UUID!) {
  chat(id: $id) {
    id
    type
    status
    unreadMessagesCounter
    bookmarked
    isTextingAllowed
    owner { ...ChatUser }
    participants { ...ChatUser }
    deals {
      id
      direction
      status
      statusDescription
      hasProblem
      item { id name price }
      user { ...ChatUser }
    }
    startedAt
    finishedAt
  }
}
` + fragmentUser

const queryChatMessages = `query chatMessages($pagination: Pagination, $filter: ChatMessageFilter) {
  chatMessages(pagination: $pagination, filter: $filter) {
    edges {
      cursor
      node { ...ChatMessageFields }
    }
    pageInfo { startCursor endCursor hasPreviousPage hasNextPage }
    totalCount
  }
}
` + fragmentMessage + "\n" + fragmentUser

const mutationCreateChatMessage = `mutation createChatMessage($input: CreateChatMessageInput!, $file: Upload) {
  createChatMessage(input: $input, file: $file) {
    ...ChatMessageFields
  }
}
` + fragmentMessage + "\n" + fragmentUser

const mutationMarkChatAsRead = `mutation markChatAsRead($input: MarkChatAsReadInput!) {
  markChatAsRead(input: $input) {
    id
    unreadMessagesCounter
  }
}`

const fragmentItem = `fragment ItemFields on Item {
  id
  slug
  name
  description
  price
  rawPrice
  status
  sellerType
  comment
  createdAt
  user { ...ChatUser }
  attachments { id url filename mime }
}`

const queryItem = `query item($slug: String, $id: UUID) {
  item(slug: $slug, id: $id) { ...ItemFields }
}
` + fragmentItem + "\n" + fragmentUser

const queryItems = `query items($filter: ItemFilter, $pagination: Pagination) {
  items(filter: $filter, pagination: $pagination) {
    edges {
      cursor
      node { ...ItemFields }
    }
    pageInfo { startCursor endCursor hasPreviousPage hasNextPage }
    totalCount
  }
}
` + fragmentItem + "\n" + fragmentUser

const queryCountItems = `query countItems($filter: ItemFilter) {
  countItems(filter: $filter)
}`

const mutationUpdateItem = `mutation updateItem($input: UpdateItemInput!, $addedAttachments: [Upload!]) {
  updateItem(input: $input, addedAttachments: $addedAttachments) { ...ItemFields }
}
` + fragmentItem + "\n" + fragmentUser

const mutationRemoveItem = `mutation removeItem($id: UUID!) {
  removeItem(id: $id) { ...ItemFields }
}
` + fragmentItem + "\n" + fragmentUser

const mutationUpdateDeal = `mutation updateDeal($input: UpdateItemDealInput!) {
  updateDeal(input: $input) {
    id
    status
    direction
    statusDescription
    hasProblem
  }
}`
